package replication

import (
	"context"
	"log"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/locstore"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// HandlePollEntry votes on a proposed entry. It has no side effect.
func (c *Coordinator) HandlePollEntry(ctx context.Context, req transporthttp.EntryRequest) (transporthttp.EntryResponse, error) {
	_, ok := c.acceptable(req)
	return transporthttp.EntryResponse{Accept: ok}, nil
}

// HandleConfirmEntry stores a finalized entry in this node's copy of the
// directory. The value arrives already merged by the leader.
func (c *Coordinator) HandleConfirmEntry(ctx context.Context, req transporthttp.EntryRequest) (transporthttp.EntryResponse, error) {
	v, ok := c.acceptable(req)
	if !ok {
		return transporthttp.EntryResponse{Accept: false}, nil
	}

	unlock := c.locks.lock(req.Key)
	defer unlock()
	if err := c.store.Put(req.Key, v); err != nil {
		return transporthttp.EntryResponse{}, err
	}
	return transporthttp.EntryResponse{Accept: true}, nil
}

// acceptable reports whether req comes from a leader this node can follow:
// a newer term, or the current term from the known leader (or with no
// leader known yet). The value must decode.
func (c *Coordinator) acceptable(req transporthttp.EntryRequest) (types.ChunkLocations, bool) {
	term := c.role.Term()
	if req.Term < term {
		log.Printf("[replication] refusing %+v from %d: stale term %d < %d", req.Key, req.LeaderIndex, req.Term, term)
		return types.ChunkLocations{}, false
	}
	if req.Term == term {
		if leader := c.role.LeaderIndex(); leader >= 0 && leader != req.LeaderIndex {
			log.Printf("[replication] refusing %+v from %d: leader is %d", req.Key, req.LeaderIndex, leader)
			return types.ChunkLocations{}, false
		}
	}
	v, err := locstore.DecodeValue(req.Value)
	if err != nil {
		log.Printf("[replication] refusing %+v: %v", req.Key, err)
		return types.ChunkLocations{}, false
	}
	return v, true
}
