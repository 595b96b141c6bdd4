// Package api is the admin HTTP API: buffer statistics, open stream sessions,
// the retained frame history and pprof. It listens on its own address so the
// stream port only serves the feed.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	golog "github.com/ipfs/go-log/v2"
	"strzcam.com/hudcam/api/bean"
	"strzcam.com/hudcam/frame"
	"strzcam.com/hudcam/server"
)

var log = golog.Logger("api")

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type FrameStore interface {
	Stats() frame.Stats
	History() []frame.Frame
	Lookup(generation uint64) (frame.Frame, bool)
}

type SessionLister interface {
	List() []server.SessionInfo
	Len() int
}

type Server struct {
	addr     string
	frames   FrameStore
	sessions SessionLister
	router   *gin.Engine
}

func NewServer(addr string, frames FrameStore, sessions SessionLister) *Server {
	s := &Server{addr: addr, frames: frames, sessions: sessions}

	router := gin.New()
	pprof.Register(router)
	router.Use(gin.LoggerWithFormatter(s.loggerFormatter))
	router.Use(gin.Recovery())
	router.NoRoute(s.handleNoRoute)

	api := router.Group("/api/v1")
	{
		api.GET("/stats", s.getStats)
		api.GET("/sessions", s.listSessions)
		historyAPI := api.Group("/history")
		{
			historyAPI.GET("", s.listHistory)
			historyAPI.GET("/:generation", s.getHistoryFrame)
		}
	}
	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggerFormatter(param gin.LogFormatterParams) string {
	if param.Latency > time.Minute {
		param.Latency = param.Latency.Truncate(time.Second)
	}
	log.Debugw(fmt.Sprintf("received %s request (%s)", param.Method, param.Path),
		"client", param.ClientIP,
		"latency", param.Latency,
		"status", param.StatusCode)
	return ""
}

func (s *Server) handleNoRoute(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, &bean.Result[any]{
		Code: http.StatusNotFound,
		Msg:  "resource not found",
	})
}

func (s *Server) getStats(c *gin.Context) {
	st := s.frames.Stats()
	stats := bean.Stats{
		Generation:     st.Generation,
		DiscardedBytes: st.DiscardedBytes,
		LastFrameSize:  st.LastFrameSize,
		Fps:            st.Fps,
		HistoryFrames:  st.HistoryFrames,
		Sessions:       s.sessions.Len(),
	}
	if !st.LastPublished.IsZero() {
		stats.LastPublished = st.LastPublished.Format(time.RFC3339Nano)
	}
	responseSuccess(c, stats)
}

func (s *Server) listSessions(c *gin.Context) {
	responseSuccess(c, s.sessions.List())
}

func (s *Server) listHistory(c *gin.Context) {
	frames := s.frames.History()
	entries := make([]bean.HistoryEntry, 0, len(frames))
	for _, f := range frames {
		entry := bean.HistoryEntry{
			Generation: f.Generation,
			Size:       f.Size(),
			Timestamp:  f.Timestamp.Format(time.RFC3339Nano),
		}
		// Frames come from the encoder as-is; a broken header only loses the size.
		if w, h, err := frame.Dimensions(f.Data); err == nil {
			entry.Width, entry.Height = w, h
		}
		entries = append(entries, entry)
	}
	responseSuccess(c, entries)
}

func (s *Server) getHistoryFrame(c *gin.Context) {
	generation, err := strconv.ParseUint(c.Param("generation"), 10, 64)
	if err != nil {
		responseErrorMsg(c, http.StatusBadRequest, "invalid generation")
		return
	}
	f, ok := s.frames.Lookup(generation)
	if !ok {
		responseErrorMsg(c, http.StatusNotFound, "frame not in history")
		return
	}
	c.Data(http.StatusOK, "image/jpeg", f.Data)
}

// Run serves the admin API until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin api listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	log.Infow("admin api listening", "addr", l.Addr().String())
	defer log.Infow("admin api stopped")
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin api: %w", err)
	}
	return nil
}
