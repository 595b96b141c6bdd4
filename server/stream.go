package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Boundary separates the parts of the multipart stream.
const Boundary = "FRAME"

// serveStream runs one MJPEG session. A new session starts at generation 0,
// so it is sent the current frame right away instead of waiting for the next
// publish.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)
	h := w.Header()
	h.Set("Age", "0")
	h.Set("Cache-Control", "no-cache, private")
	h.Set("Pragma", "no-cache")
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	session := s.sessions.Open(KindMJPEG, r.RemoteAddr)
	defer s.sessions.Close(session)

	// Headers go out now so the browser shows the stream before the first frame.
	err := rc.Flush()
	if err == nil {
		err = s.streamFrames(r.Context(), w, rc, session)
	}
	logSessionEnd(session, err)
}

// streamFrames writes one part per published frame until a write fails or
// ctx ends. Only the frames this session is waiting for when they are
// published get sent; the rest are skipped.
func (s *Server) streamFrames(ctx context.Context, w io.Writer, rc *http.ResponseController, session *Session) error {
	for {
		f, err := s.frames.WaitForNextContext(ctx, session.LastGeneration())
		if err != nil {
			return err
		}
		if s.cfg.WriteTimeout > 0 {
			err := rc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if err := writePart(w, f.Data); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return err
		}
		session.Sent(f.Generation)
	}
}

// writePart writes a single image as one part of the multipart stream.
func writePart(w io.Writer, data []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(data))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func logSessionEnd(session *Session, err error) {
	info := session.Info()
	if errors.Is(err, context.Canceled) {
		log.Infow("streaming client left",
			"session", info.ID, "client", info.RemoteAddr, "kind", info.Kind,
			"sent", info.Sent, "skipped", info.Skipped)
		return
	}
	log.Warnw("removed streaming client",
		"session", info.ID, "client", info.RemoteAddr, "kind", info.Kind,
		"sent", info.Sent, "skipped", info.Skipped, "error", err)
}
