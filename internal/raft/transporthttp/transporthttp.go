package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

const (
	PathAppendEntries = "/raft/append_entries"
	PathRequestVote   = "/raft/request_vote"
	PathPollEntry     = "/raft/poll_entry"
	PathConfirmEntry  = "/raft/confirm_entry"

	PathHeartbeat    = "/v1/heartbeat"
	PathUpdateChunks = "/v1/chunks/update"
	PathGetChunks    = "/v1/chunks/get"

	// ForwardedHeader marks a client call re-issued by a follower. A node
	// receiving it never forwards the call again.
	ForwardedHeader = "X-Chunkdir-Forwarded"

	// DefaultTimeout bounds every call that has no tighter context deadline.
	DefaultTimeout = 5 * time.Second
)

// --- RPC DTOs ---

// AppendEntriesRequest is an empty-log heartbeat from the leader.
type AppendEntriesRequest struct {
	Term        uint64 `json:"term"`
	LeaderIndex int    `json:"leader_index"`
}

type AppendEntriesResponse struct {
	Term    uint64 `json:"term"`
	Success bool   `json:"success"`
}

type RequestVoteRequest struct {
	Term           uint64 `json:"term"`
	CandidateIndex int    `json:"candidate_index"`
}

type RequestVoteResponse struct {
	Term        uint64 `json:"term"`
	VoteGranted bool   `json:"vote_granted"`
}

// EntryRequest carries one proposed directory update. It is the payload of
// both PollEntry and ConfirmEntry. Value is in wire encoding.
type EntryRequest struct {
	Key         types.ChunkKey `json:"key"`
	Value       string         `json:"value"`
	Term        uint64         `json:"term"`
	LeaderIndex int            `json:"leader_index"`
	EntryCount  uint64         `json:"entry_count"`
}

type EntryResponse struct {
	Accept bool `json:"accept"`
}

// RemoteError is a non-200 reply decoded from the error envelope.
type RemoteError struct {
	Status int
	Code   string
	Msg    string
}

func (e *RemoteError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("remote returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("remote returned %d (%s): %s", e.Status, e.Code, e.Msg)
}

// --- Interfaces ---

// RaftRPCHandler is implemented by the election node to handle incoming RPCs.
type RaftRPCHandler interface {
	HandleAppendEntries(ctx context.Context, req AppendEntriesRequest) (AppendEntriesResponse, error)
	HandleRequestVote(ctx context.Context, req RequestVoteRequest) (RequestVoteResponse, error)
}

// Transport is the interface the election node uses to send RPCs.
type Transport interface {
	AppendEntries(ctx context.Context, to int, req AppendEntriesRequest) (AppendEntriesResponse, error)
	RequestVote(ctx context.Context, to int, req RequestVoteRequest) (RequestVoteResponse, error)
}

// EntryHandler answers the leader's poll and confirm calls.
type EntryHandler interface {
	HandlePollEntry(ctx context.Context, req EntryRequest) (EntryResponse, error)
	HandleConfirmEntry(ctx context.Context, req EntryRequest) (EntryResponse, error)
}

// Resolver maps a member index to its base URL.
type Resolver interface {
	EndpointAt(i int) (string, error)
}

// --- HTTPTransport (client) ---

// HTTPTransport sends peer RPCs and forwarded client calls to other members.
type HTTPTransport struct {
	resolver Resolver
	client   *http.Client
	auth     *Authenticator
}

// NewHTTPTransport creates a transport. auth may be nil to send unsigned calls.
func NewHTTPTransport(resolver Resolver, auth *Authenticator) *HTTPTransport {
	return &HTTPTransport{
		resolver: resolver,
		client:   &http.Client{Timeout: DefaultTimeout},
		auth:     auth,
	}
}

func (t *HTTPTransport) AppendEntries(ctx context.Context, to int, req AppendEntriesRequest) (AppendEntriesResponse, error) {
	var resp AppendEntriesResponse
	err := t.peerCall(ctx, to, PathAppendEntries, req, &resp)
	return resp, err
}

func (t *HTTPTransport) RequestVote(ctx context.Context, to int, req RequestVoteRequest) (RequestVoteResponse, error) {
	var resp RequestVoteResponse
	err := t.peerCall(ctx, to, PathRequestVote, req, &resp)
	return resp, err
}

func (t *HTTPTransport) PollEntry(ctx context.Context, to int, req EntryRequest) (EntryResponse, error) {
	var resp EntryResponse
	err := t.peerCall(ctx, to, PathPollEntry, req, &resp)
	return resp, err
}

func (t *HTTPTransport) ConfirmEntry(ctx context.Context, to int, req EntryRequest) (EntryResponse, error) {
	var resp EntryResponse
	err := t.peerCall(ctx, to, PathConfirmEntry, req, &resp)
	return resp, err
}

// ForwardUpdate re-issues a client write on member to.
func (t *HTTPTransport) ForwardUpdate(ctx context.Context, to int, req types.UpdateChunkLocationsRequest) (types.Ack, error) {
	var resp types.Ack
	err := t.forward(ctx, to, PathUpdateChunks, req, &resp)
	return resp, err
}

// ForwardGet re-issues a client read on member to.
func (t *HTTPTransport) ForwardGet(ctx context.Context, to int, req types.FileData) (types.ChunkLocationsResponse, error) {
	var resp types.ChunkLocationsResponse
	err := t.forward(ctx, to, PathGetChunks, req, &resp)
	return resp, err
}

func (t *HTTPTransport) peerCall(ctx context.Context, to int, path string, in, out interface{}) error {
	addr, err := t.resolver.EndpointAt(to)
	if err != nil {
		return err
	}
	headers := http.Header{}
	if t.auth != nil {
		token, err := t.auth.Sign()
		if err != nil {
			return err
		}
		headers.Set("Authorization", "Bearer "+token)
	}
	return postJSON(ctx, t.client, addr+path, headers, in, out)
}

func (t *HTTPTransport) forward(ctx context.Context, to int, path string, in, out interface{}) error {
	addr, err := t.resolver.EndpointAt(to)
	if err != nil {
		return err
	}
	headers := http.Header{}
	headers.Set(ForwardedHeader, "1")
	return postJSON(ctx, t.client, addr+path, headers, in, out)
}

func postJSON(ctx context.Context, client *http.Client, url string, headers http.Header, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, vs := range headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &RemoteError{Status: resp.StatusCode, Code: e.ErrCode, Msg: e.ErrMsg}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// --- APIClient ---

// APIClient talks to the client API of a single node.
type APIClient struct {
	base   string
	client *http.Client
}

func NewAPIClient(base string) *APIClient {
	return &APIClient{base: base, client: &http.Client{Timeout: DefaultTimeout}}
}

func (c *APIClient) Heartbeat(ctx context.Context, req types.HeartbeatRequest) (types.Ack, error) {
	var resp types.Ack
	err := postJSON(ctx, c.client, c.base+PathHeartbeat, nil, req, &resp)
	return resp, err
}

func (c *APIClient) UpdateChunkLocations(ctx context.Context, req types.UpdateChunkLocationsRequest) (types.Ack, error) {
	var resp types.Ack
	err := postJSON(ctx, c.client, c.base+PathUpdateChunks, nil, req, &resp)
	return resp, err
}

func (c *APIClient) GetChunkLocations(ctx context.Context, req types.FileData) (types.ChunkLocationsResponse, error) {
	var resp types.ChunkLocationsResponse
	err := postJSON(ctx, c.client, c.base+PathGetChunks, nil, req, &resp)
	return resp, err
}

// --- RaftHTTPServer (server mux) ---

type RaftHTTPServer struct {
	raft    RaftRPCHandler
	entries EntryHandler
	auth    *Authenticator
}

// NewRaftHTTPServer serves peer RPCs. raft may be nil when elections are
// disabled; its routes then answer 404. auth may be nil.
func NewRaftHTTPServer(raft RaftRPCHandler, entries EntryHandler, auth *Authenticator) *RaftHTTPServer {
	return &RaftHTTPServer{raft: raft, entries: entries, auth: auth}
}

func (s *RaftHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.raft != nil {
		mux.HandleFunc("POST "+PathAppendEntries, serveRPC(s.raft.HandleAppendEntries))
		mux.HandleFunc("POST "+PathRequestVote, serveRPC(s.raft.HandleRequestVote))
	}
	mux.HandleFunc("POST "+PathPollEntry, serveRPC(s.entries.HandlePollEntry))
	mux.HandleFunc("POST "+PathConfirmEntry, serveRPC(s.entries.HandleConfirmEntry))
	if s.auth != nil {
		return s.auth.Middleware(mux)
	}
	return mux
}

func serveRPC[Req, Resp any](handle func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{ErrCode: "bad_request", ErrMsg: "bad JSON"})
			return
		}

		resp, err := handle(r.Context(), req)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{ErrCode: "internal", ErrMsg: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
