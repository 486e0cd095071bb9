package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/c2h5oh/datasize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/locstore"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/replication"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

// DefaultMaxBody caps request bodies when Options.MaxBody is zero.
const DefaultMaxBody = 1 * datasize.MB

// Directory is the part of the coordinator the API serves.
type Directory interface {
	Heartbeat(req types.HeartbeatRequest) types.Ack
	UpdateChunkLocations(ctx context.Context, req types.UpdateChunkLocationsRequest) (types.Ack, error)
	GetChunkLocations(ctx context.Context, req types.FileData) (types.ChunkLocationsResponse, error)
	All() ([]locstore.Record, error)
	Status() types.NodeStatus
}

type Options struct {
	MaxBody datasize.ByteSize
}

// Server serves the client HTTP API backed by a Directory.
type Server struct {
	dir     Directory
	maxBody int64
}

// New creates a new HTTP API server.
func New(dir Directory, opts Options) *Server {
	if opts.MaxBody == 0 {
		opts.MaxBody = DefaultMaxBody
	}
	return &Server{dir: dir, maxBody: int64(opts.MaxBody.Bytes())}
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(s.limitBody)
	r.Use(forwarded)

	registerRoutes(r, s)
	return r
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// forwarded carries the forwarded marker of a follower's call into the
// request context, so the call is not forwarded a second time.
func forwarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(transporthttp.ForwardedHeader) != "" {
			r = r.WithContext(replication.WithForwarded(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps a directory error onto the error envelope. Errors relayed
// from the leader keep the leader's status and code.
func writeError(w http.ResponseWriter, err error) {
	var remote *transporthttp.RemoteError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &remote):
		writeErrorCode(w, remote.Status, remote.Code, remote.Msg)
	case errors.As(err, &tooLarge):
		writeErrorCode(w, http.StatusRequestEntityTooLarge, "bad_request", err.Error())
	case errors.Is(err, replication.ErrBadRequest):
		writeErrorCode(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, replication.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, replication.ErrNotLeader):
		writeErrorCode(w, http.StatusServiceUnavailable, "not_leader", err.Error())
	case errors.Is(err, replication.ErrNoLeader):
		writeErrorCode(w, http.StatusServiceUnavailable, "no_leader", err.Error())
	case errors.Is(err, replication.ErrForwardFailed):
		writeErrorCode(w, http.StatusBadGateway, "forward_failed", err.Error())
	default:
		log.Printf("[httpapi] internal error: %v", err)
		writeErrorCode(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	if code == "" {
		code = "internal"
	}
	writeJSON(w, status, types.ErrorResponse{Ok: false, ErrCode: code, ErrMsg: msg})
}
