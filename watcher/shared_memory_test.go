package watcher

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFrame(t *testing.T, path string, data []byte, framed bool) {
	t.Helper()
	if err := WriteFrame(path, data, framed); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
}

func TestNoFrameFileToRead(t *testing.T) {
	source := NewFileSource(filepath.Join(t.TempDir(), "non_existent_shm"), false)
	if _, err := source.ReadFrame(); err == nil {
		t.Error("Expected an error when reading a missing frame file")
	}
}

func TestReadFramedFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_shm")
	data := fakeJPEG("test data")
	writeFrame(t, path, data, true)

	got, err := NewFileSource(path, true).ReadFrame()
	if err != nil {
		t.Fatal("Failed to read frame:", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Expected frame data %q, got %q", data, got)
	}
}

func TestReadFramedFrameTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_shm")
	header := []byte{0, 100, 0, 0, 0}
	if err := os.WriteFile(path, append(header, 0xFF, 0xD8), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(path, true).ReadFrame(); err == nil {
		t.Error("Expected an error for a truncated frame")
	}
}

func TestFileSourceReceivesFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video_frame")
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewFileSource(path, false).Run(ctx, sink)
	}()
	time.Sleep(50 * time.Millisecond)

	writeFrame(t, path, fakeJPEG("one"), false)
	chunks := sink.waitFor(t, 1)
	if !bytes.Equal(chunks[0], fakeJPEG("one")) {
		t.Errorf("Expected frame %q, got %q", fakeJPEG("one"), chunks[0])
	}

	// not a JPEG: ignored
	writeFrame(t, path, []byte("not an image"), false)
	writeFrame(t, path, fakeJPEG("two"), false)
	chunks = sink.waitFor(t, 2)
	if !bytes.Equal(chunks[1], fakeJPEG("two")) {
		t.Errorf("Expected frame %q, got %q", fakeJPEG("two"), chunks[1])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for watcher to stop")
	}
}

func TestWriteFrameFramedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_shm")
	data := fakeJPEG("payload")
	if err := WriteFrame(path, data, true); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != 1 {
		t.Errorf("Expected flag 1, got %d", raw[0])
	}
	if n := binary.LittleEndian.Uint32(raw[1:frameHeaderSize]); int(n) != len(data) {
		t.Errorf("Expected length %d, got %d", len(data), n)
	}
	if !bytes.Equal(raw[frameHeaderSize:], data) {
		t.Error("Expected payload after the header")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected the temporary file to be renamed away")
	}
}
