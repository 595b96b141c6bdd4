package server

import (
	_ "embed"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

//go:embed page/index.html
var defaultPage []byte

type asset struct {
	name        string
	contentType string
}

var staticAssets = map[string]asset{
	"/hud.png":    {name: "hud.png", contentType: "image/png"},
	"/p5.min.js":  {name: "p5.min.js", contentType: "application/javascript"},
	"/ml5.min.js": {name: "ml5.min.js", contentType: "application/javascript"},
}

func (s *Server) redirectIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/index.html", http.StatusMovedPermanently)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.page)))
	w.WriteHeader(http.StatusOK)
	w.Write(s.page)
}

// serveAsset streams a file from the assets directory verbatim.
func (s *Server) serveAsset(a asset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.cfg.AssetsDir, a.name)
		f, err := os.Open(path)
		if err != nil {
			log.Errorw("static asset unavailable", "path", path, "error", err)
			http.Error(w, "asset unavailable", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", a.contentType)
		if info, err := f.Stat(); err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, f); err != nil {
			log.Warnw("error streaming asset", "path", path, "client", r.RemoteAddr, "error", err)
		}
	}
}

// serveSnapshot returns the latest frame as a single JPEG.
func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w)
	f, ok := s.frames.Latest()
	if !ok {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(f.Size()))
	w.Header().Set("Cache-Control", "no-cache, private")
	w.WriteHeader(http.StatusOK)
	w.Write(f.Data)
}
