// Package server serves the live MJPEG feed and the HUD page over HTTP. Every
// stream connection runs in its own goroutine and is paced only by its own
// client; the producer never waits on any of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	golog "github.com/ipfs/go-log/v2"
	"strzcam.com/hudcam/config"
	"strzcam.com/hudcam/frame"
)

var log = golog.Logger("server")

// Frames is the consumer side of frame.Buffer.
type Frames interface {
	WaitForNextContext(ctx context.Context, last uint64) (frame.Frame, error)
	Latest() (frame.Frame, bool)
}

type Server struct {
	cfg      config.HTTPConfig
	frames   Frames
	sessions *Sessions
	page     []byte
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewServer(cfg config.HTTPConfig, frames Frames) (*Server, error) {
	page := defaultPage
	if cfg.IndexFile != "" {
		var err error
		if page, err = os.ReadFile(cfg.IndexFile); err != nil {
			return nil, fmt.Errorf("read index page: %w", err)
		}
	}
	s := &Server{
		cfg:      cfg,
		frames:   frames,
		sessions: NewSessions(),
		page:     page,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the page may be opened from any host name
			},
		},
	}
	s.PrepareEndpoints()
	return s, nil
}

func (s *Server) PrepareEndpoints() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.redirectIndex)
	mux.HandleFunc("GET /index.html", s.serveIndex)
	for path, asset := range staticAssets {
		mux.HandleFunc("GET "+path, s.serveAsset(asset))
	}
	mux.HandleFunc("GET /stream.mjpg", s.serveStream)
	mux.HandleFunc("GET /snapshot.jpg", s.serveSnapshot)
	mux.HandleFunc("GET /ws", s.serveWebSocket)
	// anything else falls through to the mux's 404
	s.mux = mux
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	l, err := listen(ctx, s.cfg.Addr, s.cfg.ReusePort)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done. Shutdown is abrupt: open
// streams are cut, clients are expected to reconnect.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	stop := context.AfterFunc(ctx, func() {
		srv.Close()
	})
	defer stop()

	log.Infow("streaming server listening", "addr", l.Addr().String())
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		log.Infow("streaming server stopped", "sessions", s.sessions.Len())
		return nil
	}
	return err
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
