package locstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

func openBadger(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

func putRaw(t *testing.T, s *BadgerStore, key types.ChunkKey, raw string) {
	t.Helper()
	k, err := dbKey(key)
	if err != nil {
		t.Fatal(err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(raw))
	})
	if err != nil {
		t.Fatal(err)
	}
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"mem":    NewMemStore(),
		"badger": openBadger(t),
	}
}

func TestStore_PutGetOverwrite(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			k := types.ChunkKey{FileName: "a", ChunkID: 1, MessageID: "m1"}

			if _, ok, err := s.Get(k); ok || err != nil {
				t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
			}

			if err := s.Put(k, types.ChunkLocations{MaxChunks: 3, Addresses: []string{"h1", "h2"}}); err != nil {
				t.Fatal(err)
			}
			v, ok, err := s.Get(k)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if EncodeValue(v) != "3$h1,h2" {
				t.Fatalf("expected 3$h1,h2, got %q", EncodeValue(v))
			}

			if err := s.Put(k, types.ChunkLocations{MaxChunks: 3, Addresses: []string{"h3"}}); err != nil {
				t.Fatal(err)
			}
			v, _, _ = s.Get(k)
			if EncodeValue(v) != "3$h3" {
				t.Fatalf("expected 3$h3, got %q", EncodeValue(v))
			}
			if s.Len() != 1 {
				t.Fatalf("expected 1 entry, got %d", s.Len())
			}
		})
	}
}

func TestStore_MessageIDScopesEntries(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s.Put(types.ChunkKey{FileName: "f", ChunkID: 1, MessageID: "m2"}, types.ChunkLocations{MaxChunks: 1, Addresses: []string{"b"}})
			s.Put(types.ChunkKey{FileName: "f", ChunkID: 1, MessageID: "m1"}, types.ChunkLocations{MaxChunks: 1, Addresses: []string{"a"}})

			all, err := s.All()
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 2 {
				t.Fatalf("expected 2 independent entries, got %d", len(all))
			}
			if all[0].Key.MessageID != "m1" || all[1].Key.MessageID != "m2" {
				t.Fatalf("expected sorted listing, got %+v", all)
			}
		})
	}
}

func TestMemStore_ReturnsCopies(t *testing.T) {
	s := NewMemStore()
	k := types.ChunkKey{FileName: "f", ChunkID: 1, MessageID: "m"}
	addrs := []string{"h1"}
	s.Put(k, types.ChunkLocations{MaxChunks: 1, Addresses: addrs})
	addrs[0] = "mutated"

	v, _, _ := s.Get(k)
	if v.Addresses[0] != "h1" {
		t.Fatalf("store must not alias caller slices, got %q", v.Addresses[0])
	}
	v.Addresses[0] = "mutated again"
	v2, _, _ := s.Get(k)
	if v2.Addresses[0] != "h1" {
		t.Fatalf("store must not hand out its own slices, got %q", v2.Addresses[0])
	}
}

func TestMemStore_ConcurrentDistinctKeys(t *testing.T) {
	s := NewMemStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(types.ChunkKey{FileName: "f", ChunkID: int64(i)}, types.ChunkLocations{MaxChunks: int64(i)})
		}(i)
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", s.Len())
	}
}

func TestBadgerStore_CorruptValue(t *testing.T) {
	s := openBadger(t)
	bad := types.ChunkKey{FileName: "bad", ChunkID: 1, MessageID: "m"}
	good := types.ChunkKey{FileName: "good", ChunkID: 1, MessageID: "m"}
	putRaw(t, s, bad, "no-delimiter")
	s.Put(good, types.ChunkLocations{MaxChunks: 2, Addresses: []string{"h"}})

	if _, _, err := s.Get(bad); !errors.Is(err, ErrMalformedValue) {
		t.Fatalf("expected ErrMalformedValue, got %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Key != good {
		t.Fatalf("corrupt entry should be skipped, got %+v", all)
	}
}
