package types

// Role is the Raft role a node currently holds.
type Role int

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// ChunkKey identifies one recorded placement of a file chunk. MessageID
// scopes the entry to the write request that produced it.
type ChunkKey struct {
	FileName  string `json:"file_name"`
	ChunkID   int64  `json:"chunk_id"`
	MessageID string `json:"message_id"`
}

// ChunkLocations is the value stored for a ChunkKey.
type ChunkLocations struct {
	MaxChunks int64    `json:"max_chunks"`
	Addresses []string `json:"addresses"`
}

// --- Client API DTOs ---

type HeartbeatRequest struct {
	MessageID string `json:"message_id"`
}

// Ack is the response envelope for heartbeats and writes.
type Ack struct {
	Acknowledged bool   `json:"acknowledged"`
	MessageID    string `json:"message_id"`
}

type UpdateChunkLocationsRequest struct {
	FileName  string   `json:"file_name"`
	ChunkID   int64    `json:"chunk_id"`
	MessageID string   `json:"message_id"`
	MaxChunks int64    `json:"max_chunks"`
	Addresses []string `json:"addresses"`
}

// Key returns the directory key the request writes to.
func (r UpdateChunkLocationsRequest) Key() ChunkKey {
	return ChunkKey{FileName: r.FileName, ChunkID: r.ChunkID, MessageID: r.MessageID}
}

// FileData asks for the locations of one chunk.
type FileData struct {
	FileName  string `json:"file_name"`
	ChunkID   int64  `json:"chunk_id"`
	MessageID string `json:"message_id"`
}

func (f FileData) Key() ChunkKey {
	return ChunkKey{FileName: f.FileName, ChunkID: f.ChunkID, MessageID: f.MessageID}
}

// ChunkLocationsResponse echoes the key fields together with the stored value.
type ChunkLocationsResponse struct {
	FileName  string   `json:"file_name"`
	ChunkID   int64    `json:"chunk_id"`
	MessageID string   `json:"message_id"`
	MaxChunks int64    `json:"max_chunks"`
	Addresses []string `json:"addresses"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Ok      bool   `json:"ok"`
	ErrCode string `json:"err_code,omitempty"`
	ErrMsg  string `json:"err_msg,omitempty"`
}

// LeaderHint tells clients where the leader is.
type LeaderHint struct {
	LeaderIndex int    `json:"leader_index"`
	LeaderAddr  string `json:"leader_addr,omitempty"`
}

// NodeStatus holds status info about a node.
type NodeStatus struct {
	SelfIndex    int        `json:"self_index"`
	Role         string     `json:"role"`
	Term         uint64     `json:"term"`
	EntryCount   uint64     `json:"entry_count"`
	Entries      int        `json:"entries"`
	LeaderHint   LeaderHint `json:"leader_hint"`
	LaggingPeers []int      `json:"lagging_peers,omitempty"`
}
