package locstore

import (
	"fmt"
	"log"

	"github.com/dgraph-io/badger"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

var keyPrefix = []byte("loc/")

// BadgerStore is a Store persisted in a Badger database. Values are kept in
// their wire encoding.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore uses an already opened database. The caller keeps
// ownership of db; Close does not close it.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func dbKey(key types.ChunkKey) ([]byte, error) {
	k, err := EncodeKey(key)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, keyPrefix...), k...), nil
}

func (s *BadgerStore) Get(key types.ChunkKey) (types.ChunkLocations, bool, error) {
	k, err := dbKey(key)
	if err != nil {
		return types.ChunkLocations{}, false, err
	}
	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return types.ChunkLocations{}, false, nil
	}
	if err != nil {
		return types.ChunkLocations{}, false, err
	}
	v, err := DecodeValue(string(raw))
	if err != nil {
		log.Printf("[locstore] corrupt value for %+v: %v", key, err)
		return types.ChunkLocations{}, false, fmt.Errorf("key %+v: %w", key, err)
	}
	return v, true, nil
}

func (s *BadgerStore) Put(key types.ChunkKey, val types.ChunkLocations) error {
	k, err := dbKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(EncodeValue(val)))
	})
}

// All returns every record, sorted by key. Corrupt entries are logged and skipped.
func (s *BadgerStore) All() ([]Record, error) {
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			item := it.Item()
			k, err := DecodeKey(item.KeyCopy(nil)[len(keyPrefix):])
			if err != nil {
				log.Printf("[locstore] skipping undecodable key: %v", err)
				continue
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			v, err := DecodeValue(string(raw))
			if err != nil {
				log.Printf("[locstore] skipping %+v: %v", k, err)
				continue
			}
			out = append(out, Record{Key: k, Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func (s *BadgerStore) Len() int {
	n := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func (s *BadgerStore) Close() error {
	return nil
}
