package watcher

import (
	"sync"
	"testing"
	"time"
)

// recordingSink keeps a copy of every chunk it is given.
type recordingSink struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *recordingSink) Append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, append([]byte(nil), chunk...))
}

func (r *recordingSink) Chunks() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.chunks...)
}

func (r *recordingSink) waitFor(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		chunks := r.Chunks()
		if len(chunks) >= n {
			return chunks
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %d chunks, got %d", n, len(chunks))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func fakeJPEG(payload string) []byte {
	b := []byte{0xFF, 0xD8}
	b = append(b, payload...)
	return append(b, 0xFF, 0xD9)
}
