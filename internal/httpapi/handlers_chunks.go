package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/replication"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.Status())
}

// ListChunks dumps this node's local copy of the directory.
func (s *Server) ListChunks(w http.ResponseWriter, r *http.Request) {
	all, err := s.dir.All()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "data": all})
}

func (s *Server) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, badJSON(err))
		return
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	writeJSON(w, http.StatusOK, s.dir.Heartbeat(req))
}

func (s *Server) UpdateChunkLocations(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateChunkLocationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, badJSON(err))
		return
	}
	// A forwarded call always carries the id the first node assigned.
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	if req.Addresses == nil {
		req.Addresses = []string{}
	}

	ack, err := s.dir.UpdateChunkLocations(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) GetChunkLocations(w http.ResponseWriter, r *http.Request) {
	var req types.FileData
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, badJSON(err))
		return
	}
	if req.FileName == "" {
		writeError(w, fmt.Errorf("%w: file_name is required", replication.ErrBadRequest))
		return
	}

	resp, err := s.dir.GetChunkLocations(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// badJSON keeps an oversized body distinguishable from a malformed one.
func badJSON(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: invalid JSON: %v", replication.ErrBadRequest, err)
}
