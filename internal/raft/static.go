package raft

import (
	"sync/atomic"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// Static is a role state with a leader fixed at startup. It is used when
// elections are disabled with -leader.
type Static struct {
	self    int
	leader  int
	term    uint64
	entries atomic.Uint64
}

func NewStatic(self, leader int, term uint64) *Static {
	return &Static{self: self, leader: leader, term: term}
}

func (s *Static) Role() types.Role {
	if s.self == s.leader {
		return types.RoleLeader
	}
	return types.RoleFollower
}

func (s *Static) Term() uint64 { return s.term }
func (s *Static) LeaderIndex() int { return s.leader }
func (s *Static) SelfIndex() int { return s.self }
func (s *Static) EntryCount() uint64 { return s.entries.Load() }
func (s *Static) IncrementEntryCount() uint64 { return s.entries.Add(1) }
