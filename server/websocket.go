package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// serveWebSocket pushes every frame the session catches as one binary
// message. Incoming messages are read and dropped; reading is what notices
// the peer going away.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Warnw("websocket upgrade failed", "client", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	session := s.sessions.Open(KindWebSocket, r.RemoteAddr)
	defer s.sessions.Close(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		f, err := s.frames.WaitForNextContext(ctx, session.LastGeneration())
		if err != nil {
			logSessionEnd(session, err)
			return
		}
		if s.cfg.WriteTimeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				logSessionEnd(session, err)
				return
			}
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, f.Data); err != nil {
			logSessionEnd(session, err)
			return
		}
		session.Sent(f.Generation)
	}
}
