package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/rangerd/internal/store"
	"github.com/me/rangerd/pkg/model"
)

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	entries, err := s.store.ListPeers(r.Context())
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, entries)
}

func (s *Server) handleUpsertPeer(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Handle model.HandleID `json:"handle"`
		MAC    string         `json:"mac"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	addr, err := net.ParseMAC(req.MAC)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid mac "+strconv.Quote(req.MAC)))
		return
	}

	if err := s.store.UpsertPeer(r.Context(), req.Handle, addr); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	s.logger.Info("peer upserted", "handle", req.Handle, "mac", addr.String())
	respondOK(w, reqID, map[string]any{"handle": req.Handle, "mac": addr.String()})
}

func (s *Server) handleDeletePeer(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	raw := chi.URLParam(r, "handle")
	handle, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid handle "+strconv.Quote(raw)))
		return
	}

	err = s.store.DeletePeer(r.Context(), model.HandleID(handle))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("peer "+raw+" not found"))
		return
	}
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	s.logger.Info("peer deleted", "handle", handle)
	respondOK(w, reqID, map[string]any{"handle": handle, "deleted": true})
}
