package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"strzcam.com/hudcam/config"
	"strzcam.com/hudcam/frame"
)

func jpegChunk(payload string) []byte {
	return append([]byte{0xFF, 0xD8}, payload...)
}

func newTestServer(t *testing.T, cfg config.HTTPConfig) (*Server, *frame.Buffer) {
	t.Helper()
	buffer := frame.NewBuffer(0)
	s, err := NewServer(cfg, buffer)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s, buffer
}

func waitForSessions(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions().Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d sessions, got %d", n, s.Sessions().Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRootRedirectsToIndex(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("Expected 301, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/index.html" {
		t.Errorf("Expected Location /index.html, got %q", loc)
	}
}

func TestIndexHasExactContentLength(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("Expected text/html, got %q", ct)
	}
	body := rec.Body.Bytes()
	if cl := rec.Header().Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Errorf("Expected Content-Length %d, got %s", len(body), cl)
	}
	if !bytes.Equal(body, defaultPage) {
		t.Error("Expected the embedded page")
	}
	if !bytes.Contains(body, []byte("stream.mjpg")) {
		t.Error("Expected the page to reference the stream")
	}
}

func TestIndexFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte("<html>custom</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, config.HTTPConfig{IndexFile: path})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	if rec.Body.String() != "<html>custom</html>" {
		t.Errorf("Expected custom page, got %q", rec.Body.String())
	}

	if _, err := NewServer(config.HTTPConfig{IndexFile: filepath.Join(dir, "missing.html")}, frame.NewBuffer(0)); err == nil {
		t.Error("Expected error for missing index file")
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{})
	for _, path := range []string{"/nonexistent", "/index.htm", "/stream.mjpg/extra"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	if err := os.WriteFile(filepath.Join(dir, "hud.png"), png, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "p5.min.js"), []byte("var p5;"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, config.HTTPConfig{AssetsDir: dir})

	t.Run("png", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hud.png", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Expected image/png, got %q", ct)
		}
		if !bytes.Equal(rec.Body.Bytes(), png) {
			t.Errorf("Expected raw file bytes, got %v", rec.Body.Bytes())
		}
	})

	t.Run("javascript", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/p5.min.js", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
			t.Errorf("Expected application/javascript, got %q", ct)
		}
		if rec.Body.String() != "var p5;" {
			t.Errorf("Expected file contents, got %q", rec.Body.String())
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ml5.min.js", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rec.Code)
		}
	})
}

func TestSnapshot(t *testing.T) {
	s, buffer := newTestServer(t, config.HTTPConfig{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.jpg", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 before the first frame, got %d", rec.Code)
	}

	buffer.Append(jpegChunk("first"))
	buffer.Append(jpegChunk("second"))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), jpegChunk("first")) {
		t.Errorf("Expected latest frame, got %q", rec.Body.Bytes())
	}
}

func TestServeReturnsWhenContextEnds(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/index.html", l.Addr()))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRunWithReusePort(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{Addr: "127.0.0.1:0", ReusePort: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnBadAddress(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{Addr: "not-an-address"})
	if err := s.Run(context.Background()); err == nil {
		t.Error("Expected listen error")
	}
}

func TestSetCORSHeaders(t *testing.T) {
	s, _ := newTestServer(t, config.HTTPConfig{})
	rec := httptest.NewRecorder()
	s.setCORSHeaders(rec)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected *, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "GET") {
		t.Error("Expected GET to be allowed")
	}
}

// readPart reads one multipart part in the exact layout the stream writes.
func readPart(t *testing.T, r *bufio.Reader, want []byte) {
	t.Helper()
	expected := fmt.Sprintf("--FRAME\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n%s\r\n", len(want), want)
	got := make([]byte, len(expected))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("Reading part failed: %v", err)
	}
	if string(got) != expected {
		t.Fatalf("Expected part %q, got %q", expected, got)
	}
}
