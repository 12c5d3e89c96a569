package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/rangerd/pkg/model"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, map[string]any{
		"available": s.sched.IsAvailable(),
	})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.sched.Enable()
	s.logger.Info("scheduler enabled", "request_id", reqID)
	respondOK(w, reqID, map[string]any{"enabled": true})
}

// handleDisable takes the scheduler offline. Every queued request is failed
// with NOT_AVAILABLE; nothing is replayed on re-enable.
func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	s.sched.Disable()
	s.logger.Info("scheduler disabled", "request_id", reqID)
	respondOK(w, reqID, map[string]any{"enabled": false})
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	respondText(w, s.sched.Dump())
}

// handleRevokeOwner withdraws an owner's authorization. Results for its
// in-flight commands are suppressed and reported as generic failures.
func (s *Server) handleRevokeOwner(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	owner := model.OwnerID(chi.URLParam(r, "id"))

	s.auth.Revoke(owner)
	s.logger.Info("owner revoked", "owner", owner)
	respondOK(w, reqID, map[string]any{"owner": owner, "revoked": true})
}

func (s *Server) handleRestoreOwner(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	owner := model.OwnerID(chi.URLParam(r, "id"))

	s.auth.Restore(owner)
	s.logger.Info("owner restored", "owner", owner)
	respondOK(w, reqID, map[string]any{"owner": owner, "revoked": false})
}
