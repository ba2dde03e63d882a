package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InProc keeps turns in process memory.
type InProc struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewInProc returns an empty store. maxTurns <= 0 keeps every turn.
func NewInProc(maxTurns int) *InProc {
	return &InProc{sessions: make(map[string][]Turn), maxTurns: maxTurns}
}

func (s *InProc) Load(_ context.Context, sessionID, modelVersion string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[key(sessionID, modelVersion)]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InProc) Append(_ context.Context, sessionID, modelVersion string, t Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(sessionID, modelVersion)
	turns := append(s.sessions[k], t)
	if s.maxTurns > 0 && len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[k] = turns
	return nil
}

func (s *InProc) Clear(_ context.Context, sessionID, modelVersion string) error {
	s.mu.Lock()
	delete(s.sessions, key(sessionID, modelVersion))
	s.mu.Unlock()
	return nil
}

// Prune drops turns older than before and removes emptied sessions.
func (s *InProc) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, turns := range s.sessions {
		kept := turns[:0]
		for _, t := range turns {
			if t.At.Before(before) {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(s.sessions, k)
		} else {
			s.sessions[k] = kept
		}
	}
	return removed, nil
}

func (s *InProc) Close() error { return nil }
