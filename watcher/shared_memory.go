package watcher

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"strzcam.com/hudcam/frame"
)

const frameHeaderSize = 5

// FileSource follows a file that an external encoder rewrites with every
// frame, typically under /dev/shm. Writers should replace the file
// atomically (write a temp file, then rename) so a read never sees half a
// frame.
//
// With framed set the file carries a header: one signed flag byte followed by
// the little-endian uint32 payload length.
type FileSource struct {
	path   string
	framed bool
}

func NewFileSource(path string, framed bool) *FileSource {
	return &FileSource{path: filepath.Clean(path), framed: framed}
}

// ReadFrame reads the current frame from the file.
func (s *FileSource) ReadFrame() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	if !s.framed {
		return data, nil
	}
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("invalid frame data: too short")
	}
	dataLength := int(binary.LittleEndian.Uint32(data[1:frameHeaderSize]))
	if frameHeaderSize+dataLength > len(data) {
		return nil, fmt.Errorf("invalid frame data: want %d bytes, have %d", dataLength, len(data)-frameHeaderSize)
	}
	return data[frameHeaderSize : frameHeaderSize+dataLength], nil
}

// WriteFrame publishes one frame to path in the layout FileSource reads. The
// data goes to a temporary file in the same directory that is then renamed
// over path.
func WriteFrame(path string, data []byte, framed bool) error {
	if framed {
		header := make([]byte, frameHeaderSize, frameHeaderSize+len(data))
		header[0] = 1
		binary.LittleEndian.PutUint32(header[1:], uint32(len(data)))
		data = append(header, data...)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

func (s *FileSource) Run(ctx context.Context, sink Sink) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; renames over the file replace its inode.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	log.Infow("watching frame file", "path", s.path, "framed", s.framed)

	var lastFrameData []byte
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return ErrSourceClosed
			}
			if event.Name != s.path ||
				(event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create) {
				continue
			}
			frameData, err := s.ReadFrame()
			if err != nil {
				log.Warnw("error reading frame file", "path", s.path, "error", err)
				continue
			}
			// skip the same event triggered twice
			if bytes.Equal(frameData, lastFrameData) {
				continue
			}
			if !frame.HasStartMarker(frameData) {
				log.Warnw("frame file does not start with a JPEG marker", "path", s.path, "size", len(frameData))
				continue
			}
			lastFrameData = frameData
			sink.Append(frameData)

		case err, ok := <-watcher.Errors:
			if !ok {
				return ErrSourceClosed
			}
			log.Warnw("watcher error", "error", err)
		}
	}
}
