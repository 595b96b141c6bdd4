package frame

import (
	"bytes"
	"time"
)

// startMarker is the JPEG start-of-image marker.
var startMarker = []byte{0xFF, 0xD8}

// Frame is one complete encoded image. Data must not be modified once the
// frame has been published.
type Frame struct {
	Data       []byte
	Generation uint64
	Timestamp  time.Time
}

func (f Frame) Size() int {
	return len(f.Data)
}

// HasStartMarker reports whether chunk begins with the JPEG start-of-image
// marker, which makes it the first chunk of a new frame.
func HasStartMarker(chunk []byte) bool {
	return bytes.HasPrefix(chunk, startMarker)
}
