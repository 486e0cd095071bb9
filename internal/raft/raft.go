package raft

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/theritikchoure/logx"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/cluster"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/storage"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// TimingConfig holds configurable timing parameters for elections and heartbeats.
type TimingConfig struct {
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
	HeartbeatInterval  time.Duration
}

// DefaultTimingConfig returns sensible defaults for production.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
	}
}

// Config holds configuration for an election node.
type Config struct {
	Directory *cluster.Directory
	Timing    TimingConfig
	Rand      *rand.Rand // optional: for deterministic randomness in tests
}

// Node runs leader election and exposes the resulting role state. It does
// not replicate a log; directory entries are replicated by the
// replication package, which only reads role, term and leader from here.
type Node struct {
	cfg    Config
	dir    *cluster.Directory
	stable storage.StableStore
	tp     transporthttp.Transport

	mu          sync.Mutex
	role        types.Role
	currentTerm uint64
	votedFor    int
	hasVote     bool
	leaderIndex int
	entryCount  uint64

	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	electionResetCh chan struct{}
	heartbeatStopCh chan struct{}

	rand *rand.Rand
}

// NewNode creates a new election node.
func NewNode(cfg Config, stable storage.StableStore, tp transporthttp.Transport) (*Node, error) {
	term, err := stable.GetCurrentTerm()
	if err != nil {
		return nil, err
	}

	votedFor, hasVote, err := stable.GetVotedFor()
	if err != nil {
		return nil, err
	}

	if cfg.Timing.ElectionTimeoutMin == 0 {
		cfg.Timing = DefaultTimingConfig()
	}

	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Node{
		cfg:             cfg,
		dir:             cfg.Directory,
		stable:          stable,
		tp:              tp,
		role:            types.RoleFollower,
		currentTerm:     term,
		votedFor:        votedFor,
		hasVote:         hasVote,
		leaderIndex:     -1,
		electionResetCh: make(chan struct{}, 1),
		rand:            r,
	}, nil
}

// Start starts the election timer.
func (n *Node) Start(ctx context.Context) error {
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go n.electionLoop()
	return nil
}

// Stop shuts down the node.
func (n *Node) Stop(ctx context.Context) error {
	if n.cancel == nil {
		return nil
	}
	n.cancel()
	n.wg.Wait()
	return nil
}

// --- role state ---

func (n *Node) Role() types.Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

func (n *Node) Term() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm
}

// LeaderIndex is the member believed to lead the current term, or -1.
func (n *Node) LeaderIndex() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leaderIndex
}

func (n *Node) SelfIndex() int {
	return n.dir.SelfIndex()
}

func (n *Node) EntryCount() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.entryCount
}

func (n *Node) IncrementEntryCount() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entryCount++
	return n.entryCount
}

// --- election ---

func (n *Node) randomElectionTimeout() time.Duration {
	min := n.cfg.Timing.ElectionTimeoutMin
	max := n.cfg.Timing.ElectionTimeoutMax
	delta := max - min
	if delta <= 0 {
		return min
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return min + time.Duration(n.rand.Int63n(int64(delta)))
}

func (n *Node) resetElectionTimer() {
	select {
	case n.electionResetCh <- struct{}{}:
	default:
	}
}

func (n *Node) electionLoop() {
	defer n.wg.Done()
	timer := time.NewTimer(n.randomElectionTimeout())
	defer timer.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-n.electionResetCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(n.randomElectionTimeout())
		case <-timer.C:
			if n.Role() != types.RoleLeader {
				n.startElection()
			}
			timer.Reset(n.randomElectionTimeout())
		}
	}
}

func (n *Node) startElection() {
	self := n.dir.SelfIndex()

	n.mu.Lock()
	n.currentTerm++
	n.role = types.RoleCandidate
	n.votedFor = self
	n.hasVote = true
	n.leaderIndex = -1
	term := n.currentTerm
	n.stable.SetCurrentTerm(term)
	n.stable.SetVotedFor(self)
	n.mu.Unlock()

	log.Printf("[raft] node %d starting election for term %d", self, term)

	peers := n.dir.Peers()
	req := transporthttp.RequestVoteRequest{Term: term, CandidateIndex: self}

	votes := 1 // vote for self
	majority := n.dir.Majority()

	type voteResult struct {
		resp transporthttp.RequestVoteResponse
		err  error
	}
	results := make(chan voteResult, len(peers))

	ctx, cancel := context.WithTimeout(n.ctx, n.cfg.Timing.ElectionTimeoutMin)
	defer cancel()

	for _, p := range peers {
		go func(peer int) {
			resp, err := n.tp.RequestVote(ctx, peer, req)
			results <- voteResult{resp, err}
		}(p)
	}

	for range peers {
		if votes >= majority {
			break
		}
		select {
		case <-ctx.Done():
			return
		case vr := <-results:
			if vr.err != nil {
				continue
			}
			if vr.resp.Term > term {
				n.stepDown(vr.resp.Term)
				return
			}
			if vr.resp.VoteGranted {
				votes++
			}
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// Check we're still candidate for the same term
	if n.role != types.RoleCandidate || n.currentTerm != term {
		return
	}

	if votes >= majority {
		n.becomeLeader()
	}
}

// becomeLeader must be called with n.mu held.
func (n *Node) becomeLeader() {
	n.role = types.RoleLeader
	n.leaderIndex = n.dir.SelfIndex()
	logx.Logf("[raft] node %d is leader for term %d", logx.FGBLACK, logx.BGGREEN, n.leaderIndex, n.currentTerm)

	n.heartbeatStopCh = make(chan struct{})
	n.wg.Add(1)
	go n.heartbeatLoop(n.heartbeatStopCh)
}

func (n *Node) heartbeatLoop(stop <-chan struct{}) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.Timing.HeartbeatInterval)
	defer ticker.Stop()

	// Send initial heartbeat immediately
	n.sendHeartbeats()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n.Role() != types.RoleLeader {
				return
			}
			n.sendHeartbeats()
		}
	}
}

func (n *Node) sendHeartbeats() {
	n.mu.Lock()
	if n.role != types.RoleLeader {
		n.mu.Unlock()
		return
	}
	term := n.currentTerm
	n.mu.Unlock()

	req := transporthttp.AppendEntriesRequest{Term: term, LeaderIndex: n.dir.SelfIndex()}

	for _, p := range n.dir.Peers() {
		go func(peer int) {
			ctx, cancel := context.WithTimeout(n.ctx, n.cfg.Timing.HeartbeatInterval)
			defer cancel()
			resp, err := n.tp.AppendEntries(ctx, peer, req)
			if err == nil && resp.Term > term {
				n.stepDown(resp.Term)
			}
		}(p)
	}
}

func (n *Node) stepDown(newTerm uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stepDownLocked(newTerm)
}

func (n *Node) stepDownLocked(newTerm uint64) {
	if newTerm > n.currentTerm {
		n.currentTerm = newTerm
		n.stable.SetCurrentTerm(newTerm)
		n.hasVote = false
		n.stable.ClearVotedFor()
		n.leaderIndex = -1
	}
	if n.role == types.RoleLeader {
		logx.Logf("[raft] node %d stepping down in term %d", logx.FGBLACK, logx.BGCYAN, n.dir.SelfIndex(), n.currentTerm)
		if n.heartbeatStopCh != nil {
			close(n.heartbeatStopCh)
			n.heartbeatStopCh = nil
		}
	}
	n.role = types.RoleFollower
}

// HandleAppendEntries handles a leader heartbeat.
func (n *Node) HandleAppendEntries(ctx context.Context, req transporthttp.AppendEntriesRequest) (transporthttp.AppendEntriesResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// Step down if higher term
	if req.Term > n.currentTerm {
		n.stepDownLocked(req.Term)
	}

	// Reject if our term is higher
	if req.Term < n.currentTerm {
		return transporthttp.AppendEntriesResponse{Term: n.currentTerm, Success: false}, nil
	}

	n.resetElectionTimer()

	if n.leaderIndex != req.LeaderIndex {
		log.Printf("[raft] node %d follows leader %d in term %d", n.dir.SelfIndex(), req.LeaderIndex, req.Term)
	}
	n.leaderIndex = req.LeaderIndex

	// A candidate hearing from this term's leader gives up
	if n.role == types.RoleCandidate {
		n.role = types.RoleFollower
	}

	return transporthttp.AppendEntriesResponse{Term: n.currentTerm, Success: true}, nil
}

// HandleRequestVote grants at most one vote per term.
func (n *Node) HandleRequestVote(ctx context.Context, req transporthttp.RequestVoteRequest) (transporthttp.RequestVoteResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term > n.currentTerm {
		n.stepDownLocked(req.Term)
	}

	if req.Term < n.currentTerm {
		return transporthttp.RequestVoteResponse{Term: n.currentTerm, VoteGranted: false}, nil
	}

	if !n.hasVote || n.votedFor == req.CandidateIndex {
		n.votedFor = req.CandidateIndex
		n.hasVote = true
		n.stable.SetVotedFor(req.CandidateIndex)
		n.resetElectionTimer()
		return transporthttp.RequestVoteResponse{Term: n.currentTerm, VoteGranted: true}, nil
	}

	return transporthttp.RequestVoteResponse{Term: n.currentTerm, VoteGranted: false}, nil
}
