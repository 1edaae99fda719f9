package lock

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockSerializesSameToken(t *testing.T) {
	m := NewManager()

	const workers = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = m.WithLock("tok", func() error {
				// Unsynchronized increment: only safe if WithLock serializes.
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestWithLockIndependentTokens(t *testing.T) {
	m := NewManager()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = m.WithLock("a", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// A different token must not block behind "a".
	done := make(chan struct{})
	go func() {
		_ = m.WithLock("b", func() error { return nil })
		close(done)
	}()
	<-done
	close(release)
}

func TestWithLockPropagatesError(t *testing.T) {
	m := NewManager()
	want := errors.New("boom")
	err := m.WithLock("tok", func() error { return want })
	require.ErrorIs(t, err, want)
}

func TestWithLockReleasesAfterPanic(t *testing.T) {
	m := NewManager()

	func() {
		defer func() { _ = recover() }()
		_ = m.WithLock("tok", func() error { panic("boom") })
	}()

	// Lock must be reusable after the panic unwound.
	err := m.WithLock("tok", func() error { return nil })
	assert.NoError(t, err)
}
