package frame

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

// Dimensions reads the image size from a JPEG header without decoding pixels.
func Dimensions(data []byte) (int, int, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode jpeg header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
