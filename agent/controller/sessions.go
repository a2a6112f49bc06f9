package controller

import "sync"

// sessionLocks serializes turns per session while letting unrelated sessions
// proceed in parallel. Locks are reference counted so idle entries do not
// accumulate.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock, 8)}
}

func (l *sessionLocks) acquire(sessionID string) *sessionLock {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return sl
}

func (l *sessionLocks) release(sessionID string, sl *sessionLock) {
	sl.mu.Unlock()

	l.mu.Lock()
	sl.refs--
	if sl.refs <= 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}
