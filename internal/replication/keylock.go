package replication

import (
	"sync"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// keyLocks hands out one mutex per key, dropping it when nobody holds or
// waits on it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[types.ChunkKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[types.ChunkKey]*keyLock)}
}

// lock blocks until key is free and returns its unlock function.
func (k *keyLocks) lock(key types.ChunkKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
