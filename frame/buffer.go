// Package frame reassembles the producer's byte stream into discrete JPEG
// frames and hands the latest one to any number of waiting consumers.
package frame

import (
	"context"
	"sync"
	"time"

	golog "github.com/ipfs/go-log/v2"
)

var log = golog.Logger("frame")

type Stats struct {
	Generation     uint64    `json:"generation"`
	DiscardedBytes uint64    `json:"discardedBytes"`
	LastFrameSize  int       `json:"lastFrameSize"`
	LastPublished  time.Time `json:"lastPublished"`
	Fps            float64   `json:"fps"`
	HistoryFrames  int       `json:"historyFrames"`
}

// Buffer is the latest-frame slot shared by the producer and all stream
// sessions. The accumulation buffer, the published frame and the generation
// are all guarded by mu; publishing broadcasts on cond.
type Buffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	acc       []byte
	latest    Frame
	discarded uint64
	waiting   int

	history *history

	fps        float64
	fpsStart   time.Time
	frameCount int
}

// NewBuffer creates an empty buffer. historySize > 0 keeps that many recently
// published frames for inspection.
func NewBuffer(historySize int) *Buffer {
	b := &Buffer{fpsStart: time.Now()}
	b.cond = sync.NewCond(&b.mu)
	if historySize > 0 {
		b.history = newHistory(historySize)
	}
	return b
}

// Append feeds a producer chunk. A chunk starting with the JPEG start marker completes
// the frame accumulated so far, publishes it and wakes every waiter; the chunk
// then starts the next frame. Bytes arriving before the first marker are
// dropped. Append never waits on consumers and copies chunk, so the producer
// may reuse it.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if HasStartMarker(chunk) {
		prev := len(b.acc)
		if prev > 0 {
			b.publish(time.Now())
		}
		b.acc = make([]byte, 0, max(prev, len(chunk)))
	} else if len(b.acc) == 0 {
		b.discarded += uint64(len(chunk))
		return
	}
	b.acc = append(b.acc, chunk...)
}

// publish swaps the accumulated bytes into the published slot. Callers hold mu.
func (b *Buffer) publish(now time.Time) {
	b.latest = Frame{
		Data:       b.acc,
		Generation: b.latest.Generation + 1,
		Timestamp:  now,
	}
	b.acc = nil
	if b.history != nil {
		b.history.Add(b.latest)
	}

	b.frameCount++
	if elapsed := now.Sub(b.fpsStart); elapsed > time.Second {
		b.fps = float64(b.frameCount) / elapsed.Seconds()
		b.frameCount = 0
		b.fpsStart = now
	}
	log.Debugw("published frame", "generation", b.latest.Generation, "size", b.latest.Size(), "waiting", b.waiting)
	b.cond.Broadcast()
}

// WaitForNext blocks until a frame newer than last has been published and
// returns it with its generation. There is no timeout: an idle producer keeps
// consumers idle.
func (b *Buffer) WaitForNext(last uint64) (Frame, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.latest.Generation <= last {
		b.wait()
	}
	return b.latest, b.latest.Generation
}

// WaitForNextContext is WaitForNext that also gives up when ctx is done.
func (b *Buffer) WaitForNextContext(ctx context.Context, last uint64) (Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.latest.Generation <= last {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		b.wait()
	}
	return b.latest, nil
}

func (b *Buffer) wait() {
	b.waiting++
	b.cond.Wait()
	b.waiting--
}

// waiters reports how many goroutines are blocked in a wait call.
func (b *Buffer) waiters() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.waiting
}

// Latest returns the most recently published frame, if any.
func (b *Buffer) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.latest.Generation > 0
}

// History returns the retained frames, oldest first. It is empty when the
// buffer was created without history.
func (b *Buffer) History() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.history == nil {
		return nil
	}
	return b.history.GetAll()
}

func (b *Buffer) Lookup(generation uint64) (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.history == nil {
		return Frame{}, false
	}
	return b.history.Find(generation)
}

func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{
		Generation:     b.latest.Generation,
		DiscardedBytes: b.discarded,
		LastFrameSize:  b.latest.Size(),
		LastPublished:  b.latest.Timestamp,
		Fps:            b.fps,
	}
	if b.history != nil {
		st.HistoryFrames = b.history.Size()
	}
	return st
}
