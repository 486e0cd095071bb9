package locstore

import (
	"sort"
	"sync"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// Record is one key/value pair of the store.
type Record struct {
	Key   types.ChunkKey       `json:"key"`
	Value types.ChunkLocations `json:"value"`
}

// Store maps chunk keys to their recorded locations. Entries are only ever
// created or overwritten.
type Store interface {
	Get(key types.ChunkKey) (types.ChunkLocations, bool, error)
	Put(key types.ChunkKey, val types.ChunkLocations) error
	All() ([]Record, error)
	Len() int
	Close() error
}

// MemStore is a thread-safe in-memory Store.
type MemStore struct {
	mu   sync.RWMutex
	data map[types.ChunkKey]types.ChunkLocations
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[types.ChunkKey]types.ChunkLocations)}
}

func (s *MemStore) Get(key types.ChunkKey) (types.ChunkLocations, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return types.ChunkLocations{}, false, nil
	}
	v.Addresses = cloneAddrs(v.Addresses)
	return v, true, nil
}

func (s *MemStore) Put(key types.ChunkKey, val types.ChunkLocations) error {
	val.Addresses = cloneAddrs(val.Addresses)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	return nil
}

// All returns a copy of every record, sorted by key.
func (s *MemStore) All() ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.data))
	for k, v := range s.data {
		v.Addresses = cloneAddrs(v.Addresses)
		out = append(out, Record{Key: k, Value: v})
	}
	s.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemStore) Close() error {
	return nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].Key, recs[j].Key
		if a.FileName != b.FileName {
			return a.FileName < b.FileName
		}
		if a.ChunkID != b.ChunkID {
			return a.ChunkID < b.ChunkID
		}
		return a.MessageID < b.MessageID
	})
}
