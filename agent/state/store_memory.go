package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It is the default for the
// CLI and for tests. Idle sessions expire lazily on Load; there is no
// background sweeper.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	payload []byte
	savedAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithMemoryTTL(ttl time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]memoryEntry, 8),
		ttl:      defaultStoreTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	if s.ttl > 0 && s.now().Sub(entry.savedAt) > s.ttl {
		delete(s.sessions, sessionID)
		return nil, ErrStateNotFound
	}

	var session Session
	if err := json.Unmarshal(entry.payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}
	return &session, nil
}

func (s *MemoryStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(session.ID) == "" {
		return ErrInvalidSession
	}

	// JSON round-trip so callers keep no aliases into stored state.
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = memoryEntry{payload: payload, savedAt: s.now()}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
