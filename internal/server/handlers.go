package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/marcelocantos/txtlog/internal/entry"
	"github.com/marcelocantos/txtlog/internal/journal"
)

const (
	maxBodyBytes = 1 << 20
	defaultTail  = 50
	maxTail      = 1000
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// appendRequest keeps raw fields so that a missing or null text can be told
// apart from a text of the wrong type.
type appendRequest struct {
	Text json.RawMessage `json:"text"`
	Kind json.RawMessage `json:"kind"`
}

type tailResponse struct {
	Entries []entry.Entry `json:"entries"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.staticDir, "index.html")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<h3>index.html not found</h3>"))
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// handleAppend accepts {"text": "...", "kind": "..."}. A missing or null
// text is logged as an empty entry; kind defaults to IN.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "Expected JSON")
		return
	}

	req, err := decodeAppend(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Expected JSON object")
		return
	}

	text, ok := optionalString(req.Text)
	if !ok {
		writeError(w, http.StatusBadRequest, "text must be a string")
		return
	}
	kind, ok := optionalString(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "kind must be a string")
		return
	}
	if kind == "" {
		kind = string(entry.KindIn)
	}
	if err := entry.Kind(kind).Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.writer.Append(text, entry.Kind(kind)); err != nil {
		s.logger.WithError(err).Error("Failed to append log entry")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// decodeAppend reads exactly one JSON object from body.
func decodeAppend(body io.Reader) (appendRequest, error) {
	var req appendRequest
	dec := json.NewDecoder(body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return req, err
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return req, errors.New("body is not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after JSON object")
		}
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	return req, nil
}

// optionalString decodes a JSON string, treating absent and null as "".
func optionalString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	n := defaultTail
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = min(parsed, maxTail)
	}

	entries, err := journal.Tail(s.writer.Path(), n)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read log")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}
	writeJSON(w, http.StatusOK, tailResponse{Entries: entries})
}
