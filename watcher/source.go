// Package watcher holds the frame producers that feed a frame.Buffer: an
// external MJPEG encoder process, a raw MJPEG reader, a shared-memory file
// watched with fsnotify and a synthetic test pattern.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	golog "github.com/ipfs/go-log/v2"
	"strzcam.com/hudcam/config"
)

var log = golog.Logger("watcher")

// ErrSourceClosed is returned when the producer stops delivering data on its
// own, e.g. the encoder exited or its pipe reached EOF.
var ErrSourceClosed = errors.New("frame source closed")

// Sink receives producer chunks. frame.Buffer implements it.
type Sink interface {
	Append(chunk []byte)
}

// Source produces frames into a sink until ctx is done or the producer
// fails. Run owns any resource it acquires and releases it before returning;
// a nil error means ctx ended the run.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceCommand:
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("command source: %w", config.ErrInvalid)
		}
		return NewCommandSource(cfg.Command[0], cfg.Command[1:], cfg.MaxFrameSize), nil
	case config.SourceStdin:
		return NewReaderSource(os.Stdin, cfg.MaxFrameSize), nil
	case config.SourceFile:
		return NewFileSource(cfg.File, cfg.Framed), nil
	case config.SourcePattern:
		interval := time.Second / time.Duration(cfg.Fps)
		return NewPatternSource(NewPattern(cfg.Width, cfg.Height), interval, cfg.ChunkSize), nil
	}
	return nil, fmt.Errorf("source kind %q: %w", cfg.Kind, config.ErrInvalid)
}
