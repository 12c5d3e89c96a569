package server

import "net/http"

type endpointInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Desc   string `json:"description"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, map[string]any{
		"name":    "rangerd API",
		"version": "v1",
		"endpoints": []endpointInfo{
			{Method: "POST", Path: "/api/v1/rangings", Desc: "Submit a ranging request; blocks until it completes"},
			{Method: "GET", Path: "/api/v1/rangings", Desc: "List the ranging history"},
			{Method: "GET", Path: "/api/v1/rangings/{id}", Desc: "Get one ranging record"},
			{Method: "GET", Path: "/api/v1/peers", Desc: "List peer directory entries"},
			{Method: "PUT", Path: "/api/v1/peers", Desc: "Create or update a peer directory entry"},
			{Method: "DELETE", Path: "/api/v1/peers/{handle}", Desc: "Delete a peer directory entry"},
			{Method: "POST", Path: "/api/v1/owners/{id}/revoke", Desc: "Revoke an owner's authorization"},
			{Method: "DELETE", Path: "/api/v1/owners/{id}/revoke", Desc: "Restore an owner's authorization"},
			{Method: "GET", Path: "/api/v1/status", Desc: "Scheduler availability"},
			{Method: "POST", Path: "/api/v1/enable", Desc: "Enable the scheduler"},
			{Method: "POST", Path: "/api/v1/disable", Desc: "Disable the scheduler and flush the queue"},
			{Method: "GET", Path: "/api/v1/dump", Desc: "Plain-text diagnostic snapshot"},
			{Method: "GET", Path: "/api/v1/health", Desc: "Service health"},
		},
	})
}
