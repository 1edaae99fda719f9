// Package lock serializes all mutations of a single attempt record.
package lock

import "sync"

// Manager hands out one mutex per token. Mutexes are created lazily and live
// for the process lifetime; tokens are bounded by the number of live exams, so
// the registry is not reaped.
//
// WithLock gives total ordering of mutations per token and no ordering across
// tokens. Every read-modify-write cycle on an attempt must happen entirely
// inside one WithLock call: reading outside the lock and writing inside it
// reintroduces the autosave/submit/sweeper races this exists to prevent.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager() *Manager {
	return &Manager{locks: make(map[string]*sync.Mutex)}
}

func (m *Manager) lockFor(token string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[token]
	if !ok {
		l = &sync.Mutex{}
		m.locks[token] = l
	}
	return l
}

// WithLock runs fn inside the token's critical section. The mutex is released
// on every exit path, including panics.
func (m *Manager) WithLock(token string, fn func() error) error {
	l := m.lockFor(token)
	l.Lock()
	defer l.Unlock()
	return fn()
}
