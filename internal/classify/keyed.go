package classify

import (
	"sync"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
)

// keyedMutex hands out one mutex per fingerprint and drops it when the last
// holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[fingerprint.Fingerprint]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[fingerprint.Fingerprint]*refMutex)}
}

// Lock blocks until fp is free and returns the matching unlock.
func (k *keyedMutex) Lock(fp fingerprint.Fingerprint) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[fp]
	if !ok {
		m = &refMutex{}
		k.locks[fp] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, fp)
		}
		k.mu.Unlock()
	}
}

// size reports the number of live keys. Used for testing.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
