package replication

import (
	"context"
	"log"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/locstore"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// replicate runs poll, confirm and local apply for one key. It reports
// false without touching any store when the poll does not reach a majority.
func (c *Coordinator) replicate(ctx context.Context, key types.ChunkKey, update types.ChunkLocations) (bool, error) {
	// Once started, a write only ends by deadline, never by the caller going away.
	ctx = context.WithoutCancel(ctx)

	unlock := c.locks.lock(key)
	defer unlock()

	prev, exists, err := c.store.Get(key)
	if err != nil {
		log.Printf("[replication] load %+v: %v", key, err)
		return false, err
	}
	next := locstore.Merge(prev, exists, update)

	entry := transporthttp.EntryRequest{
		Key:         key,
		Value:       locstore.EncodeValue(next),
		Term:        c.role.Term(),
		LeaderIndex: c.role.SelfIndex(),
		EntryCount:  c.role.EntryCount(),
	}

	if !c.poll(ctx, entry) {
		log.Printf("[replication] %+v rejected: no quorum in term %d", key, entry.Term)
		return false, nil
	}

	c.confirm(ctx, entry)

	if err := c.store.Put(key, next); err != nil {
		return false, err
	}
	count := c.role.IncrementEntryCount()
	log.Printf("[replication] committed %+v = %s (entry %d)", key, entry.Value, count)
	return true, nil
}

// poll asks every peer to accept entry and reports whether a strict
// majority, self included, did. Polls are dispatched in directory order
// with at most PollParallelism in flight; once the majority is reached no
// further peer is contacted and in-flight polls are abandoned.
func (c *Coordinator) poll(ctx context.Context, entry transporthttp.EntryRequest) bool {
	majority := c.cluster.Size()/2 + 1
	accepted := 1 // self
	if accepted >= majority {
		return true
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	peers := c.cluster.Peers()
	results := make(chan bool, len(peers))
	next, inflight := 0, 0

	for {
		for inflight < c.cfg.PollParallelism && next < len(peers) {
			go func(peer int) {
				results <- c.pollPeer(ctx, peer, entry)
			}(peers[next])
			next++
			inflight++
		}
		if inflight == 0 {
			return false
		}

		ok := <-results
		inflight--
		if ok {
			accepted++
			if accepted >= majority {
				return true
			}
		}
	}
}

// pollPeer returns the peer's vote. Errors, explicit rejections and calls
// that outlive PollTimeout are all a rejection.
func (c *Coordinator) pollPeer(ctx context.Context, peer int, entry transporthttp.EntryRequest) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		resp, err := c.tp.PollEntry(ctx, peer, entry)
		if err != nil {
			log.Printf("[replication] poll peer %d: %v", peer, err)
			done <- false
			return
		}
		done <- resp.Accept
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

// confirm tells every peer, in directory order, that entry is final.
// Failures are logged and remembered but never change the outcome.
func (c *Coordinator) confirm(ctx context.Context, entry transporthttp.EntryRequest) {
	for _, peer := range c.cluster.Peers() {
		resp, err := c.tp.ConfirmEntry(ctx, peer, entry)
		switch {
		case err != nil:
			log.Printf("[replication] confirm peer %d: %v", peer, err)
			c.lagging.mark(peer)
		case !resp.Accept:
			log.Printf("[replication] peer %d refused confirm of %+v", peer, entry.Key)
			c.lagging.mark(peer)
		default:
			c.lagging.clear(peer)
		}
	}
}
