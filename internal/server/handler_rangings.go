package server

import (
	"encoding/json"
	"net/http"

	"github.com/me/rangerd/pkg/model"
)

// waitSink bridges the scheduler's asynchronous completion callback back to
// the blocked HTTP handler. The scheduler invokes exactly one of the two
// methods exactly once, so unbuffered delivery into sized-one channels never
// blocks the event loop.
type waitSink struct {
	results  chan []model.RangingResult
	failures chan model.FailureCode
}

func newWaitSink() *waitSink {
	return &waitSink{
		results:  make(chan []model.RangingResult, 1),
		failures: make(chan model.FailureCode, 1),
	}
}

func (s *waitSink) OnResults(results []model.RangingResult) { s.results <- results }
func (s *waitSink) OnFailure(code model.FailureCode)        { s.failures <- code }

// handleSubmitRanging enqueues a ranging request and blocks until it
// completes. Clients that disconnect while waiting are treated as lost
// owners: their queued requests are dropped and any in-flight command is
// cancelled.
func (s *Server) handleSubmitRanging(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Owner model.OwnerID `json:"owner"`
		Peers []model.Peer  `json:"peers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Owner == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("owner is required"))
		return
	}

	rangingReq := model.RangingRequest{Peers: req.Peers}
	if err := rangingReq.Validate(); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError(err.Error()))
		return
	}

	sink := newWaitSink()
	s.sched.Submit(req.Owner, rangingReq, sink)

	select {
	case results := <-sink.results:
		respondOK(w, reqID, map[string]any{
			"owner":   req.Owner,
			"results": results,
		})

	case code := <-sink.failures:
		s.respondRangingFailure(w, reqID, code)

	case <-r.Context().Done():
		// The client went away before its request completed.
		s.logger.Info("client disconnected mid-ranging", "owner", req.Owner, "request_id", reqID)
		s.sched.OnOwnerLost(req.Owner)
	}
}

// respondRangingFailure maps a scheduler failure code onto an HTTP status.
func (s *Server) respondRangingFailure(w http.ResponseWriter, reqID string, code model.FailureCode) {
	switch code {
	case model.FailureNotAvailable:
		respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
			Code:    model.ErrNotAvailable,
			Message: "ranging is not available",
		})
	case model.FailureTimeout:
		respondError(w, reqID, http.StatusGatewayTimeout, &model.APIError{
			Code:    model.ErrRangingFail,
			Message: "ranging timed out: " + string(code),
		})
	default:
		respondError(w, reqID, http.StatusBadGateway, &model.APIError{
			Code:    model.ErrRangingFail,
			Message: "ranging failed: " + string(code),
		})
	}
}
