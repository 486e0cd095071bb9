package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/cluster"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// mockHandler implements RaftRPCHandler and EntryHandler for testing.
type mockHandler struct {
	lastAEReq      AppendEntriesRequest
	lastRVReq      RequestVoteRequest
	lastPollReq    EntryRequest
	lastConfirmReq EntryRequest
	aeRespTerm     uint64
	rvRespTerm     uint64
	voteGrant      bool
	accept         bool
}

func (m *mockHandler) HandleAppendEntries(_ context.Context, req AppendEntriesRequest) (AppendEntriesResponse, error) {
	m.lastAEReq = req
	return AppendEntriesResponse{Term: m.aeRespTerm, Success: true}, nil
}

func (m *mockHandler) HandleRequestVote(_ context.Context, req RequestVoteRequest) (RequestVoteResponse, error) {
	m.lastRVReq = req
	return RequestVoteResponse{Term: m.rvRespTerm, VoteGranted: m.voteGrant}, nil
}

func (m *mockHandler) HandlePollEntry(_ context.Context, req EntryRequest) (EntryResponse, error) {
	m.lastPollReq = req
	return EntryResponse{Accept: m.accept}, nil
}

func (m *mockHandler) HandleConfirmEntry(_ context.Context, req EntryRequest) (EntryResponse, error) {
	m.lastConfirmReq = req
	return EntryResponse{Accept: m.accept}, nil
}

// directoryFor puts the test server at index 1 and a dead endpoint at 0.
func directoryFor(t *testing.T, url string) *cluster.Directory {
	t.Helper()
	d, err := cluster.New([]string{"http://127.0.0.1:1", url}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestTransportHTTP_AppendEntries_RoundTrip(t *testing.T) {
	handler := &mockHandler{aeRespTerm: 3}
	ts := httptest.NewServer(NewRaftHTTPServer(handler, handler, nil).Handler())
	defer ts.Close()

	transport := NewHTTPTransport(directoryFor(t, ts.URL), nil)

	resp, err := transport.AppendEntries(context.Background(), 1, AppendEntriesRequest{Term: 3, LeaderIndex: 0})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Term != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if handler.lastAEReq.LeaderIndex != 0 || handler.lastAEReq.Term != 3 {
		t.Fatalf("request mismatch: %+v", handler.lastAEReq)
	}
}

func TestTransportHTTP_RequestVote_RoundTrip(t *testing.T) {
	handler := &mockHandler{rvRespTerm: 5, voteGrant: true}
	ts := httptest.NewServer(NewRaftHTTPServer(handler, handler, nil).Handler())
	defer ts.Close()

	transport := NewHTTPTransport(directoryFor(t, ts.URL), nil)

	resp, err := transport.RequestVote(context.Background(), 1, RequestVoteRequest{Term: 5, CandidateIndex: 0})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.VoteGranted || resp.Term != 5 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if handler.lastRVReq.CandidateIndex != 0 {
		t.Fatalf("expected candidate 0, got %d", handler.lastRVReq.CandidateIndex)
	}
}

func TestTransportHTTP_PollAndConfirm_RoundTrip(t *testing.T) {
	handler := &mockHandler{accept: true}
	ts := httptest.NewServer(NewRaftHTTPServer(nil, handler, nil).Handler())
	defer ts.Close()

	transport := NewHTTPTransport(directoryFor(t, ts.URL), nil)

	req := EntryRequest{
		Key:         types.ChunkKey{FileName: "a_b", ChunkID: 1, MessageID: "m1"},
		Value:       "3$h1,h2",
		Term:        4,
		LeaderIndex: 0,
		EntryCount:  12,
	}

	resp, err := transport.PollEntry(context.Background(), 1, req)
	if err != nil || !resp.Accept {
		t.Fatalf("poll: resp=%+v err=%v", resp, err)
	}
	if handler.lastPollReq != req {
		t.Fatalf("poll request mismatch: %+v", handler.lastPollReq)
	}

	resp, err = transport.ConfirmEntry(context.Background(), 1, req)
	if err != nil || !resp.Accept {
		t.Fatalf("confirm: resp=%+v err=%v", resp, err)
	}
	if handler.lastConfirmReq != req {
		t.Fatalf("confirm request mismatch: %+v", handler.lastConfirmReq)
	}
}

func TestTransportHTTP_ElectionRoutesAbsentWithoutRaft(t *testing.T) {
	handler := &mockHandler{}
	ts := httptest.NewServer(NewRaftHTTPServer(nil, handler, nil).Handler())
	defer ts.Close()

	transport := NewHTTPTransport(directoryFor(t, ts.URL), nil)
	_, err := transport.RequestVote(context.Background(), 1, RequestVoteRequest{Term: 1})
	var re *RemoteError
	if !errors.As(err, &re) || re.Status != http.StatusNotFound {
		t.Fatalf("expected 404 RemoteError, got %v", err)
	}
}

func TestTransportHTTP_BadJSON_Returns400(t *testing.T) {
	handler := &mockHandler{}
	ts := httptest.NewServer(NewRaftHTTPServer(handler, handler, nil).Handler())
	defer ts.Close()

	resp, err := ts.Client().Post(ts.URL+PathPollEntry, "application/json", strings.NewReader("{invalid"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTransportHTTP_UnreachablePeer(t *testing.T) {
	transport := NewHTTPTransport(directoryFor(t, "http://127.0.0.1:1"), nil)
	if _, err := transport.PollEntry(context.Background(), 0, EntryRequest{}); err == nil {
		t.Fatal("expected error for unreachable peer")
	}
	if _, err := transport.PollEntry(context.Background(), 7, EntryRequest{}); !errors.Is(err, cluster.ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestTransportHTTP_Auth(t *testing.T) {
	handler := &mockHandler{accept: true}
	ts := httptest.NewServer(NewRaftHTTPServer(handler, handler, NewAuthenticator("s3cret", 1)).Handler())
	defer ts.Close()
	dir := directoryFor(t, ts.URL)

	// Same secret: accepted
	ok := NewHTTPTransport(dir, NewAuthenticator("s3cret", 0))
	if resp, err := ok.PollEntry(context.Background(), 1, EntryRequest{}); err != nil || !resp.Accept {
		t.Fatalf("signed call: resp=%+v err=%v", resp, err)
	}

	// Wrong secret and no token: 401
	for name, tp := range map[string]*HTTPTransport{
		"wrong secret": NewHTTPTransport(dir, NewAuthenticator("other", 0)),
		"unsigned":     NewHTTPTransport(dir, nil),
	} {
		_, err := tp.PollEntry(context.Background(), 1, EntryRequest{})
		var re *RemoteError
		if !errors.As(err, &re) || re.Status != http.StatusUnauthorized || re.Code != "unauthorized" {
			t.Fatalf("%s: expected 401 unauthorized, got %v", name, err)
		}
	}
}

func TestAuthenticator_SignVerify(t *testing.T) {
	a := NewAuthenticator("k", 3)
	token, err := a.Sign()
	if err != nil {
		t.Fatal(err)
	}
	claims, err := a.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.MemberIndex != 3 {
		t.Fatalf("expected member 3, got %d", claims.MemberIndex)
	}
	if _, err := NewAuthenticator("other", 0).Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTransportHTTP_ForwardSetsHeaderAndRelaysErrors(t *testing.T) {
	var sawHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathUpdateChunks, func(w http.ResponseWriter, r *http.Request) {
		sawHeader = r.Header.Get(ForwardedHeader)
		var req types.UpdateChunkLocationsRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, types.Ack{Acknowledged: true, MessageID: req.MessageID})
	})
	mux.HandleFunc("POST "+PathGetChunks, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, types.ErrorResponse{ErrCode: "not_found", ErrMsg: "no such chunk"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	transport := NewHTTPTransport(directoryFor(t, ts.URL), nil)

	ack, err := transport.ForwardUpdate(context.Background(), 1, types.UpdateChunkLocationsRequest{MessageID: "m9"})
	if err != nil || !ack.Acknowledged || ack.MessageID != "m9" {
		t.Fatalf("forward update: ack=%+v err=%v", ack, err)
	}
	if sawHeader != "1" {
		t.Fatalf("expected forwarded header, got %q", sawHeader)
	}

	_, err = transport.ForwardGet(context.Background(), 1, types.FileData{FileName: "x"})
	var re *RemoteError
	if !errors.As(err, &re) || re.Status != http.StatusNotFound || re.Code != "not_found" {
		t.Fatalf("expected relayed not_found, got %v", err)
	}
}
