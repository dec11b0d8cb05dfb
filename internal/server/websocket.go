package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"

	"github.com/marcelocantos/txtlog/internal/follow"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and sends each newly appended entry
// as a JSON object.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(s.writer.Path()), 0755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Start following before the upgrade completes so that nothing appended
	// after the client sees the handshake is missed.
	entries, err := follow.Follow(ctx, s.writer.Path(), s.logger)
	if err != nil {
		s.logger.WithError(err).Error("Cannot follow log")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Read pump: detect client disconnect.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for e := range entries {
		if err := conn.WriteJSON(e); err != nil {
			s.logger.WithError(err).Debug("Websocket write failed")
			return
		}
	}
}
