package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/txtlog/internal/entry"
	"github.com/marcelocantos/txtlog/internal/journal"
	"github.com/marcelocantos/txtlog/internal/metrics"
)

var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "txt.log")
	w := journal.NewWriter(path, journal.WithClock(func() time.Time { return fixedTime }))
	s := New(Config{
		Writer:    w,
		StaticDir: dir,
		Logger:    quietLogger(),
		Metrics:   metrics.NewMetrics("txtlog_test"),
	})
	return s, path
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPostLog(t *testing.T) {
	s, path := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/log", "application/json", `{"text":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "[2024-01-01 00:00:00.000 UTC] [IN] hi\n", readLog(t, path))
}

func TestPostLogWithKindAndCharset(t *testing.T) {
	s, path := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/log", "application/json; charset=utf-8", `{"text":"bye","kind":"OUT"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[2024-01-01 00:00:00.000 UTC] [OUT] bye\n", readLog(t, path))
}

func TestPostLogMissingOrNullText(t *testing.T) {
	s, path := newTestServer(t)

	for _, body := range []string{`{}`, `{"text":null}`} {
		rec := do(t, s.Handler(), http.MethodPost, "/log", "application/json", body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
	}
	want := "[2024-01-01 00:00:00.000 UTC] [IN] \n"
	assert.Equal(t, want+want, readLog(t, path))
}

func TestPostLogRejectsNonJSON(t *testing.T) {
	s, path := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/log", "text/plain", `hi`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Expected JSON"}`, rec.Body.String())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing may be written on a rejected request")
}

func TestPostLogRejectsBadBodies(t *testing.T) {
	s, path := newTestServer(t)

	for _, body := range []string{
		`{"text":`, `{"text":42}`, `["hi"]`, `{"text":"x","kind":7}`,
		`null`, `"hi"`, `{"text":"a"} trailing`, `{"text":"a"}{"text":"b"}`,
		`{"text":"x","kind":"a]b"}`,
	} {
		rec := do(t, s.Handler(), http.MethodPost, "/log", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPostLogWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	s := New(Config{
		Writer: journal.NewWriter(filepath.Join(blocker, "txt.log")),
		Logger: quietLogger(),
	})
	rec := do(t, s.Handler(), http.MethodPost, "/log", "application/json", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Message)
}

func TestPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodOptions, "/log", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "<h3>index.html not found</h3>", rec.Body.String())

	require.NoError(t, os.WriteFile(filepath.Join(s.staticDir, "index.html"), []byte("<p>hello</p>"), 0644))
	rec = do(t, s.Handler(), http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>hello</p>", rec.Body.String())
}

func TestTail(t *testing.T) {
	s, _ := newTestServer(t)
	for _, text := range []string{"a", "b", "c"} {
		_, err := s.writer.Append(text, entry.KindInfo)
		require.NoError(t, err)
	}

	rec := do(t, s.Handler(), http.MethodGet, "/log?n=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp tailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "b", resp.Entries[0].Text)
	assert.Equal(t, "c", resp.Entries[1].Text)

	rec = do(t, s.Handler(), http.MethodGet, "/log?n=many", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTailEmptyLog(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/log", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, s.Handler(), http.MethodPost, "/log", "application/json", `{"text":"x"}`)
	rec = do(t, s.Handler(), http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "txtlog_test_http_requests_total")
}

func TestStream(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/log/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := http.Post(ts.URL+"/log", "application/json", strings.NewReader(`{"text":"live","kind":"OUT"}`))
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got entry.Entry
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, entry.KindOut, got.Kind)
	assert.Equal(t, "live", got.Text)
	assert.True(t, fixedTime.Equal(got.Time))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
