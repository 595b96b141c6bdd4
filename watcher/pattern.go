package watcher

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"time"
)

const patternBlock = 32

// Pattern renders a synthetic test image: random grey blocks with a white bar
// that moves one block per frame.
type Pattern struct {
	width   int
	height  int
	quality int
	rng     *rand.Rand
	n       int
}

func NewPattern(width, height int) *Pattern {
	return &Pattern{
		width:   width,
		height:  height,
		quality: 80,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next encodes the next pattern frame as JPEG.
func (p *Pattern) Next() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, p.width, p.height))
	for x := 0; x < p.width; x += patternBlock {
		for y := 0; y < p.height; y += patternBlock {
			gray := color.Gray{Y: uint8(p.rng.Intn(256))}
			for i := x; i < min(x+patternBlock, p.width); i++ {
				for j := y; j < min(y+patternBlock, p.height); j++ {
					img.SetGray(i, j, gray)
				}
			}
		}
	}
	bar := (p.n * patternBlock) % max(p.width, 1)
	for i := bar; i < min(bar+patternBlock/4, p.width); i++ {
		for j := 0; j < p.height; j++ {
			img.SetGray(i, j, color.Gray{Y: 255})
		}
	}
	p.n++

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encode pattern frame: %w", err)
	}
	return buf.Bytes(), nil
}

// PatternSource publishes Pattern frames at a fixed interval. Each frame is
// handed over in chunkSize pieces, the way a camera encoder delivers partial
// writes.
type PatternSource struct {
	pattern   *Pattern
	interval  time.Duration
	chunkSize int
}

func NewPatternSource(pattern *Pattern, interval time.Duration, chunkSize int) *PatternSource {
	return &PatternSource{pattern: pattern, interval: interval, chunkSize: chunkSize}
}

func (s *PatternSource) Run(ctx context.Context, sink Sink) error {
	log.Infow("pattern source started", "width", s.pattern.width, "height", s.pattern.height, "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			data, err := s.pattern.Next()
			if err != nil {
				return err
			}
			for off := 0; off < len(data); off += s.chunkSize {
				sink.Append(data[off:min(off+s.chunkSize, len(data))])
			}
		}
	}
}
