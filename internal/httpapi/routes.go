package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
)

func registerRoutes(r chi.Router, s *Server) {
	r.Get("/healthz", s.Healthz)
	r.Get("/status", s.Status)

	r.Post(transporthttp.PathHeartbeat, s.Heartbeat)
	r.Route("/v1/chunks", func(r chi.Router) {
		r.Get("/", s.ListChunks)
		r.Post("/update", s.UpdateChunkLocations)
		r.Post("/get", s.GetChunkLocations)
	})
}
