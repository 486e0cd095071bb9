package replication

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/locstore"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// DefaultPollTimeout bounds each PollEntry call.
const DefaultPollTimeout = 300 * time.Millisecond

var (
	ErrNotLeader     = errors.New("not leader")
	ErrNoLeader      = errors.New("leader unknown")
	ErrNotFound      = errors.New("chunk locations not found")
	ErrBadRequest    = errors.New("bad request")
	ErrForwardFailed = errors.New("forward to leader failed")
)

// RoleState is the election state this package reads. Only
// IncrementEntryCount writes to it, after a commit.
type RoleState interface {
	Role() types.Role
	Term() uint64
	LeaderIndex() int
	SelfIndex() int
	EntryCount() uint64
	IncrementEntryCount() uint64
}

// Cluster is the static member list.
type Cluster interface {
	Size() int
	Peers() []int
	EndpointAt(i int) (string, error)
}

// PeerTransport reaches other members.
type PeerTransport interface {
	PollEntry(ctx context.Context, to int, req transporthttp.EntryRequest) (transporthttp.EntryResponse, error)
	ConfirmEntry(ctx context.Context, to int, req transporthttp.EntryRequest) (transporthttp.EntryResponse, error)
	ForwardUpdate(ctx context.Context, to int, req types.UpdateChunkLocationsRequest) (types.Ack, error)
	ForwardGet(ctx context.Context, to int, req types.FileData) (types.ChunkLocationsResponse, error)
}

// Config configures the coordinator.
type Config struct {
	PollTimeout time.Duration
	// PollParallelism is how many polls may be in flight at once. 1 polls
	// peers strictly one after another in directory order.
	PollParallelism int
	LaggingTTL      time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.PollParallelism <= 0 {
		c.PollParallelism = 1
	}
	if c.LaggingTTL <= 0 {
		c.LaggingTTL = defaultLaggingTTL
	}
	return c
}

// Coordinator serves the directory operations on one node: it forwards to
// the leader when it is not one, and on the leader runs poll, confirm and
// commit. It also answers the leader's poll and confirm calls.
type Coordinator struct {
	role    RoleState
	cluster Cluster
	tp      PeerTransport
	store   locstore.Store
	cfg     Config

	locks   *keyLocks
	lagging *laggingPeers
}

// New creates a Coordinator.
func New(role RoleState, cluster Cluster, tp PeerTransport, store locstore.Store, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	return &Coordinator{
		role:    role,
		cluster: cluster,
		tp:      tp,
		store:   store,
		cfg:     cfg,
		locks:   newKeyLocks(),
		lagging: newLaggingPeers(cfg.LaggingTTL),
	}
}

type forwardedKey struct{}

// WithForwarded marks ctx as carrying a call another member already forwarded.
func WithForwarded(ctx context.Context) context.Context {
	return context.WithValue(ctx, forwardedKey{}, true)
}

func isForwarded(ctx context.Context) bool {
	v, _ := ctx.Value(forwardedKey{}).(bool)
	return v
}

// leaderTarget decides whether the call is served here. It returns the
// member to forward to, or -1 to serve locally.
func (c *Coordinator) leaderTarget(ctx context.Context) (int, error) {
	if c.role.Role() == types.RoleLeader {
		return -1, nil
	}
	if isForwarded(ctx) {
		return -1, ErrNotLeader
	}
	leader := c.role.LeaderIndex()
	if leader < 0 || leader == c.role.SelfIndex() {
		return -1, ErrNoLeader
	}
	return leader, nil
}

// --- Client operations ---

// Heartbeat echoes the message id.
func (c *Coordinator) Heartbeat(req types.HeartbeatRequest) types.Ack {
	return types.Ack{Acknowledged: true, MessageID: req.MessageID}
}

// UpdateChunkLocations records where a chunk lives. A write that does not
// reach a quorum is reported with Acknowledged=false and a nil error.
func (c *Coordinator) UpdateChunkLocations(ctx context.Context, req types.UpdateChunkLocationsRequest) (types.Ack, error) {
	if req.FileName == "" {
		return types.Ack{}, fmt.Errorf("%w: file_name is required", ErrBadRequest)
	}
	if err := locstore.ValidateAddresses(req.Addresses); err != nil {
		return types.Ack{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	leader, err := c.leaderTarget(ctx)
	if err != nil {
		return types.Ack{}, err
	}
	if leader >= 0 {
		log.Printf("[replication] forwarding update %+v to leader %d", req.Key(), leader)
		ack, err := c.tp.ForwardUpdate(ctx, leader, req)
		if err != nil {
			return types.Ack{}, fmt.Errorf("%w: leader %d: %w", ErrForwardFailed, leader, err)
		}
		return ack, nil
	}

	ok, err := c.replicate(ctx, req.Key(), types.ChunkLocations{MaxChunks: req.MaxChunks, Addresses: req.Addresses})
	if err != nil {
		return types.Ack{}, err
	}
	return types.Ack{Acknowledged: ok, MessageID: req.MessageID}, nil
}

// GetChunkLocations returns the recorded locations of one chunk.
func (c *Coordinator) GetChunkLocations(ctx context.Context, req types.FileData) (types.ChunkLocationsResponse, error) {
	leader, err := c.leaderTarget(ctx)
	if err != nil {
		return types.ChunkLocationsResponse{}, err
	}
	if leader >= 0 {
		resp, err := c.tp.ForwardGet(ctx, leader, req)
		if err != nil {
			return types.ChunkLocationsResponse{}, fmt.Errorf("%w: leader %d: %w", ErrForwardFailed, leader, err)
		}
		return resp, nil
	}

	key := req.Key()
	v, ok, err := c.store.Get(key)
	if err != nil {
		log.Printf("[replication] read %+v: %v", key, err)
		return types.ChunkLocationsResponse{}, err
	}
	if !ok {
		return types.ChunkLocationsResponse{}, fmt.Errorf("%w: %s/%d/%s", ErrNotFound, key.FileName, key.ChunkID, key.MessageID)
	}
	return types.ChunkLocationsResponse{
		FileName:  req.FileName,
		ChunkID:   req.ChunkID,
		MessageID: req.MessageID,
		MaxChunks: v.MaxChunks,
		Addresses: v.Addresses,
	}, nil
}

// All lists this node's local copy of the directory.
func (c *Coordinator) All() ([]locstore.Record, error) {
	return c.store.All()
}

func (c *Coordinator) IsLeader() bool {
	return c.role.Role() == types.RoleLeader
}

// Status reports role state, store size and peers whose last confirm failed.
func (c *Coordinator) Status() types.NodeStatus {
	leader := c.role.LeaderIndex()
	hint := types.LeaderHint{LeaderIndex: leader}
	if leader >= 0 {
		hint.LeaderAddr, _ = c.cluster.EndpointAt(leader)
	}
	return types.NodeStatus{
		SelfIndex:    c.role.SelfIndex(),
		Role:         c.role.Role().String(),
		Term:         c.role.Term(),
		EntryCount:   c.role.EntryCount(),
		Entries:      c.store.Len(),
		LeaderHint:   hint,
		LaggingPeers: c.lagging.list(),
	}
}
