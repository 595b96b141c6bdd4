package watcher

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

var jpegTrailer = []byte{0xFF, 0xD9}

// mjpegSplitFunc splits an MJPEG byte stream into individual JPEG images by
// finding the end-of-image marker. Each token therefore starts at an image
// boundary, which is what frame.Buffer expects from a producer chunk.
func mjpegSplitFunc(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, jpegTrailer); i >= 0 {
		return i + 2, data[:i+2], nil
	}
	// Request more data.
	return 0, nil, nil
}

// ReaderSource reads a raw MJPEG stream (concatenated JPEG images).
type ReaderSource struct {
	r            io.Reader
	maxFrameSize int
}

func NewReaderSource(r io.Reader, maxFrameSize int) *ReaderSource {
	return &ReaderSource{r: r, maxFrameSize: maxFrameSize}
}

// Run splits the stream until EOF or ctx is done. A reader that is also an
// io.Closer is closed when ctx ends so a blocked read returns.
func (s *ReaderSource) Run(ctx context.Context, sink Sink) error {
	if c, ok := s.r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}
	scanner := bufio.NewScanner(s.r)
	// the limit is the larger of max and the initial capacity
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxFrameSize)), s.maxFrameSize)
	scanner.Split(mjpegSplitFunc)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		sink.Append(scanner.Bytes())
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read mjpeg stream: %w", err)
	}
	return ErrSourceClosed
}
