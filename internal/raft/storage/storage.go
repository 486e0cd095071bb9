package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger"
)

// StableStore persists election state (term, vote).
type StableStore interface {
	GetCurrentTerm() (uint64, error)
	SetCurrentTerm(uint64) error
	GetVotedFor() (int, bool, error)
	SetVotedFor(int) error
	ClearVotedFor() error
}

// --- Memory implementation ---

// MemStableStore is an in-memory StableStore.
type MemStableStore struct {
	mu       sync.Mutex
	term     uint64
	votedFor int
	hasVote  bool
}

func NewMemStableStore() *MemStableStore {
	return &MemStableStore{}
}

func (s *MemStableStore) GetCurrentTerm() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term, nil
}

func (s *MemStableStore) SetCurrentTerm(term uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
	return nil
}

func (s *MemStableStore) GetVotedFor() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votedFor, s.hasVote, nil
}

func (s *MemStableStore) SetVotedFor(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votedFor = idx
	s.hasVote = true
	return nil
}

func (s *MemStableStore) ClearVotedFor() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votedFor = 0
	s.hasVote = false
	return nil
}

// --- Badger implementation ---

var (
	termKey = []byte("raft/current_term")
	voteKey = []byte("raft/voted_for")
)

// BadgerStableStore keeps term and vote in a Badger database shared with
// the location store.
type BadgerStableStore struct {
	db *badger.DB
}

func NewBadgerStableStore(db *badger.DB) *BadgerStableStore {
	return &BadgerStableStore{db: db}
}

func (s *BadgerStableStore) getUint(key []byte) (uint64, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("stable store: %s has %d bytes, want 8", key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (s *BadgerStableStore) setUint(key []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (s *BadgerStableStore) GetCurrentTerm() (uint64, error) {
	term, _, err := s.getUint(termKey)
	return term, err
}

func (s *BadgerStableStore) SetCurrentTerm(term uint64) error {
	return s.setUint(termKey, term)
}

func (s *BadgerStableStore) GetVotedFor() (int, bool, error) {
	v, ok, err := s.getUint(voteKey)
	return int(v), ok, err
}

func (s *BadgerStableStore) SetVotedFor(idx int) error {
	return s.setUint(voteKey, uint64(idx))
}

func (s *BadgerStableStore) ClearVotedFor() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(voteKey)
	})
}
