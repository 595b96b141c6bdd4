package server

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindMJPEG     Kind = "mjpeg"
	KindWebSocket Kind = "websocket"
)

// Session is the state of one streaming connection. Only the connection's
// own goroutine advances it; counters are atomic so they can be read from
// elsewhere.
type Session struct {
	ID         uuid.UUID
	Kind       Kind
	RemoteAddr string
	StartedAt  time.Time

	lastGeneration atomic.Uint64
	sent           atomic.Uint64
	skipped        atomic.Uint64
}

type SessionInfo struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	RemoteAddr     string    `json:"remoteAddr"`
	StartedAt      time.Time `json:"startedAt"`
	LastGeneration uint64    `json:"lastGeneration"`
	Sent           uint64    `json:"sent"`
	Skipped        uint64    `json:"skipped"`
}

func (s *Session) LastGeneration() uint64 {
	return s.lastGeneration.Load()
}

// Sent records that the frame with the given generation reached the client.
// Generations published between two sends count as skipped; the frames that
// came before the session joined do not.
func (s *Session) Sent(generation uint64) {
	last := s.lastGeneration.Swap(generation)
	if last > 0 && generation > last+1 {
		s.skipped.Add(generation - last - 1)
	}
	s.sent.Add(1)
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:             s.ID.String(),
		Kind:           s.Kind,
		RemoteAddr:     s.RemoteAddr,
		StartedAt:      s.StartedAt,
		LastGeneration: s.lastGeneration.Load(),
		Sent:           s.sent.Load(),
		Skipped:        s.skipped.Load(),
	}
}

// Sessions tracks the open streaming connections.
type Sessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[uuid.UUID]*Session)}
}

func (ss *Sessions) Open(kind Kind, remoteAddr string) *Session {
	s := &Session{
		ID:         uuid.New(),
		Kind:       kind,
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now(),
	}
	ss.mu.Lock()
	ss.sessions[s.ID] = s
	count := len(ss.sessions)
	ss.mu.Unlock()
	log.Infow("streaming client connected", "session", s.ID, "client", remoteAddr, "kind", kind, "sessions", count)
	return s
}

func (ss *Sessions) Close(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, s.ID)
}

func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

// List returns the open sessions, oldest first.
func (ss *Sessions) List() []SessionInfo {
	ss.mu.Lock()
	list := make([]SessionInfo, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		list = append(list, s.Info())
	}
	ss.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}
