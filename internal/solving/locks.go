package solving

import (
	"sync"
)

// sessionLocks serializes mutating operations per session identity.
// Different sessions never share a lock, so cross-session operations do
// not contend.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a session id, creating it on first use, and
// returns the matching unlock.
func (l *sessionLocks) Lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
