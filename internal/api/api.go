// Package api exposes a small admin HTTP surface over a running peer:
// health, the current engaged-peer set, and manifest lookup by
// content-identifier (SPEC_FULL.md §3.8).
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshlog/oplogsync/internal/logging"
	"github.com/meshlog/oplogsync/internal/oplog/manifest"
	"github.com/meshlog/oplogsync/internal/storage/accesscontroller"
)

// PeerLister is the narrow view of the sync engine the admin surface
// needs.
type PeerLister interface {
	Peers() []peer.ID
}

// ManifestLoader is the narrow view of manifest storage the admin
// surface needs.
type ManifestLoader interface {
	Load(ctx context.Context, hash string) (manifest.Manifest, error)
}

// Server builds the admin HTTP handler.
type Server struct {
	peers     PeerLister
	manifests ManifestLoader
	access    *accesscontroller.Controller
	logger    logging.Logger
	env       logging.Environment
}

// New builds an admin Server. access may be nil, in which case every
// route is open; matching spec.md §6's permissive default controller.
func New(peers PeerLister, manifests ManifestLoader, access *accesscontroller.Controller, logger logging.Logger, env logging.Environment) *Server {
	return &Server{peers: peers, manifests: manifests, access: access, logger: logger, env: env}
}

// Handler builds the routed, logging-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /peers", s.handlePeers)
	mux.HandleFunc("GET /manifest/{hash}", s.handleManifest)
	return logging.Middleware(s.logger, s.env)(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, accesscontroller.OpAdmin) {
		return
	}
	ids := s.peers.Peers()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"peers": out})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, accesscontroller.OpAdmin) {
		return
	}
	hash := r.PathValue("hash")
	if hash == "" {
		http.Error(w, "missing manifest hash", http.StatusBadRequest)
		return
	}

	m, err := s.manifests.Load(r.Context(), hash)
	if err != nil {
		s.logger.Warn(r.Context(), "manifest lookup failed", "hash", hash, "error", err)
		http.Error(w, "manifest not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// authorize checks the Authorization: Bearer <token> header against
// the access controller when one is configured. A missing controller
// means every request is allowed, per spec.md §6's permissive default.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, op accesscontroller.Operation) bool {
	if s.access == nil {
		return true
	}

	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return false
	}

	if err := s.access.MustCanPerform(token, r.URL.Path, op); err != nil {
		http.Error(w, "unauthorized", http.StatusForbidden)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
