package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/rangerd/internal/config"
	"github.com/me/rangerd/internal/engine"
	"github.com/me/rangerd/internal/logging"
	"github.com/me/rangerd/internal/resolver"
	"github.com/me/rangerd/internal/scheduler"
	"github.com/me/rangerd/internal/store"
	"github.com/me/rangerd/pkg/model"
)

// testHarness wires a full stack: in-memory store, simulated engine,
// store-backed resolver, and a running scheduler core.
type testHarness struct {
	srv   *Server
	core  *scheduler.Core
	sim   *engine.Sim
	store *store.SQLiteStore
	auth  *scheduler.RevocationList
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := logging.Discard()

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	simCfg := engine.DefaultSimConfig()
	simCfg.Latency = 5 * time.Millisecond
	sim, err := engine.NewSim(simCfg, logger)
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}

	auth := scheduler.NewRevocationList()
	schedCfg := scheduler.DefaultConfig()
	schedCfg.RangingTimeout = 2 * time.Second
	core := scheduler.NewCore(sim, resolver.NewDirectory(st, logger), schedCfg, logger,
		scheduler.WithAuthorizer(auth),
		scheduler.WithHistory(st),
	)
	sim.SetResultFunc(core.OnResults)

	ctx, cancel := context.WithCancel(context.Background())
	go core.Start(ctx)
	t.Cleanup(func() {
		cancel()
		core.Sync()
	})

	srv := New(config.DefaultServerConfig(), st, core, logger, WithAuthorizer(auth))
	return &testHarness{srv: srv, core: core, sim: sim, store: st, auth: auth}
}

// envelope decodes the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (int, envelope) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v, body=%s", method, path, err, w.Body.String())
	}
	return w.Code, env
}

func doGet(t *testing.T, srv *Server, path string) envelope {
	t.Helper()
	code, env := doJSON(t, srv, "GET", path, "")
	if code != http.StatusOK {
		t.Fatalf("GET %s: status=%d, want 200, error=%v", path, code, env.Error)
	}
	return env
}

type submitResponse struct {
	Owner   string                `json:"owner"`
	Results []model.RangingResult `json:"results"`
}

func TestSubmitRanging_AddressPeers(t *testing.T) {
	h := newHarness(t)

	body := `{"owner":"own_a","peers":[{"mac":"aa:bb:cc:00:00:01"},{"mac":"aa:bb:cc:00:00:02"}]}`
	code, env := doJSON(t, h.srv, "POST", "/api/v1/rangings/", body)
	if code != http.StatusOK {
		t.Fatalf("status=%d, want 200, error=%v", code, env.Error)
	}

	var data submitResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(data.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(data.Results))
	}
	for i, res := range data.Results {
		if res.Status != model.ResultSuccess {
			t.Errorf("results[%d].Status = %q, want SUCCESS", i, res.Status)
		}
		if res.DistanceMm <= 0 {
			t.Errorf("results[%d].DistanceMm = %d, want > 0", i, res.DistanceMm)
		}
	}
}

func TestSubmitRanging_HandlePeer(t *testing.T) {
	h := newHarness(t)

	// Register the handle first, then range against it.
	code, env := doJSON(t, h.srv, "PUT", "/api/v1/peers/", `{"handle":42,"mac":"aa:bb:cc:00:00:2a"}`)
	if code != http.StatusOK {
		t.Fatalf("PUT /peers: status=%d, error=%v", code, env.Error)
	}

	code, env = doJSON(t, h.srv, "POST", "/api/v1/rangings/", `{"owner":"own_a","peers":[{"handle":42}]}`)
	if code != http.StatusOK {
		t.Fatalf("status=%d, want 200, error=%v", code, env.Error)
	}

	var data submitResponse
	json.Unmarshal(env.Data, &data)
	if len(data.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(data.Results))
	}
	if data.Results[0].Peer.Kind != model.PeerKindHandle || data.Results[0].Peer.Handle != 42 {
		t.Errorf("result peer = %+v, want handle 42", data.Results[0].Peer)
	}
}

func TestSubmitRanging_UnknownHandle(t *testing.T) {
	h := newHarness(t)

	code, env := doJSON(t, h.srv, "POST", "/api/v1/rangings/", `{"owner":"own_a","peers":[{"handle":999}]}`)
	if code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrRangingFail {
		t.Errorf("error = %v, want RANGING_FAILED", env.Error)
	}
	if !strings.Contains(env.Error.Message, string(model.FailureResolutionIncomplete)) {
		t.Errorf("message = %q, want it to name RESOLUTION_INCOMPLETE", env.Error.Message)
	}
}

func TestSubmitRanging_ValidationErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"missing owner", `{"peers":[{"mac":"aa:bb:cc:00:00:01"}]}`},
		{"no peers", `{"owner":"own_a","peers":[]}`},
		{"bad mac", `{"owner":"own_a","peers":[{"mac":"zz:zz"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := doJSON(t, h.srv, "POST", "/api/v1/rangings/", tt.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", code)
			}
			if env.Error == nil || env.Error.Code != model.ErrValidation {
				t.Errorf("error = %v, want VALIDATION_ERROR", env.Error)
			}
		})
	}
}

func TestSubmitRanging_WhileDisabled(t *testing.T) {
	h := newHarness(t)

	if code, _ := doJSON(t, h.srv, "POST", "/api/v1/disable", ""); code != http.StatusOK {
		t.Fatalf("disable: status=%d", code)
	}
	h.core.Sync()

	code, env := doJSON(t, h.srv, "POST", "/api/v1/rangings/",
		`{"owner":"own_a","peers":[{"mac":"aa:bb:cc:00:00:01"}]}`)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrNotAvailable {
		t.Errorf("error = %v, want NOT_AVAILABLE", env.Error)
	}
}

func TestRevokedOwner_GetsGenericFailure(t *testing.T) {
	h := newHarness(t)
	h.auth.Revoke("own_spy")

	code, env := doJSON(t, h.srv, "POST", "/api/v1/rangings/",
		`{"owner":"own_spy","peers":[{"mac":"aa:bb:cc:00:00:01"}]}`)
	if code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", code)
	}
	if !strings.Contains(env.Error.Message, string(model.FailureGeneric)) {
		t.Errorf("message = %q, want it to carry the generic code", env.Error.Message)
	}
}

func TestOwnerRevokeRestore_Roundtrip(t *testing.T) {
	h := newHarness(t)

	if code, _ := doJSON(t, h.srv, "POST", "/api/v1/owners/own_b/revoke", ""); code != http.StatusOK {
		t.Fatalf("revoke: status=%d", code)
	}
	if h.auth.Allowed("own_b") {
		t.Error("owner still allowed after revoke")
	}

	if code, _ := doJSON(t, h.srv, "DELETE", "/api/v1/owners/own_b/revoke", ""); code != http.StatusOK {
		t.Fatalf("restore: status=%d", code)
	}
	if !h.auth.Allowed("own_b") {
		t.Error("owner not allowed after restore")
	}
}

func TestPeers_CRUD(t *testing.T) {
	h := newHarness(t)

	code, _ := doJSON(t, h.srv, "PUT", "/api/v1/peers/", `{"handle":7,"mac":"aa:bb:cc:00:00:07"}`)
	if code != http.StatusOK {
		t.Fatalf("upsert: status=%d", code)
	}

	env := doGet(t, h.srv, "/api/v1/peers/")
	var entries []model.DirectoryEntry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Handle != 7 {
		t.Fatalf("entries = %+v, want one entry with handle 7", entries)
	}

	code, _ = doJSON(t, h.srv, "DELETE", "/api/v1/peers/7", "")
	if code != http.StatusOK {
		t.Fatalf("delete: status=%d", code)
	}

	code, env2 := doJSON(t, h.srv, "DELETE", "/api/v1/peers/7", "")
	if code != http.StatusNotFound {
		t.Fatalf("second delete: status=%d, want 404", code)
	}
	if env2.Error == nil || env2.Error.Code != model.ErrNotFound {
		t.Errorf("error = %v, want NOT_FOUND", env2.Error)
	}

	code, _ = doJSON(t, h.srv, "DELETE", "/api/v1/peers/notanumber", "")
	if code != http.StatusBadRequest {
		t.Fatalf("bad handle: status=%d, want 400", code)
	}
}

func TestHistory_RecordsCompletedRanging(t *testing.T) {
	h := newHarness(t)

	code, _ := doJSON(t, h.srv, "POST", "/api/v1/rangings/",
		`{"owner":"own_a","peers":[{"mac":"aa:bb:cc:00:00:01"}]}`)
	if code != http.StatusOK {
		t.Fatalf("submit: status=%d", code)
	}

	// The audit write is asynchronous; poll the list endpoint.
	deadline := time.Now().Add(2 * time.Second)
	for {
		env := doGet(t, h.srv, "/api/v1/rangings/")
		if env.Pagination != nil && env.Pagination.Total == 1 {
			var recs []*model.RangingRecord
			if err := json.Unmarshal(env.Data, &recs); err != nil {
				t.Fatalf("decode records: %v", err)
			}
			if recs[0].Outcome != model.OutcomeResults {
				t.Errorf("Outcome = %q, want RESULTS", recs[0].Outcome)
			}

			got := doGet(t, h.srv, "/api/v1/rangings/"+recs[0].ID)
			var rec model.RangingRecord
			if err := json.Unmarshal(got.Data, &rec); err != nil {
				t.Fatalf("decode record: %v", err)
			}
			if rec.ID != recs[0].ID {
				t.Errorf("ID = %q, want %q", rec.ID, recs[0].ID)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("audit record never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGetRanging_NotFound(t *testing.T) {
	h := newHarness(t)
	code, env := doJSON(t, h.srv, "GET", "/api/v1/rangings/rng_missing", "")
	if code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %v, want NOT_FOUND", env.Error)
	}
}

func TestStatus_TracksEnableDisable(t *testing.T) {
	h := newHarness(t)

	env := doGet(t, h.srv, "/api/v1/status")
	var data map[string]any
	json.Unmarshal(env.Data, &data)
	if data["available"] != true {
		t.Errorf("available = %v, want true", data["available"])
	}

	doJSON(t, h.srv, "POST", "/api/v1/disable", "")
	h.core.Sync()

	env = doGet(t, h.srv, "/api/v1/status")
	json.Unmarshal(env.Data, &data)
	if data["available"] != false {
		t.Errorf("available = %v after disable, want false", data["available"])
	}
}

func TestDump_PlainText(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest("GET", "/api/v1/dump", nil)
	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(w.Body.String(), "queue length:") {
		t.Errorf("dump body missing queue length:\n%s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	env := doGet(t, h.srv, "/api/v1/health")

	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" {
		t.Errorf("health status = %q, want healthy", data.Status)
	}
	if data.Scheduler != "available" {
		t.Errorf("scheduler = %q, want available", data.Scheduler)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}

func TestDiscovery(t *testing.T) {
	h := newHarness(t)
	env := doGet(t, h.srv, "/api/v1/")

	var data struct {
		Name      string         `json:"name"`
		Endpoints []endpointInfo `json:"endpoints"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Name != "rangerd API" {
		t.Errorf("name = %q, want rangerd API", data.Name)
	}
	if len(data.Endpoints) < 10 {
		t.Errorf("endpoints count = %d, want >= 10", len(data.Endpoints))
	}
}

func TestResponseEnvelope_HasRequestID(t *testing.T) {
	h := newHarness(t)
	env := doGet(t, h.srv, "/api/v1/health")
	if !strings.HasPrefix(env.RequestID, "req_") {
		t.Errorf("request_id = %q, want req_ prefix", env.RequestID)
	}
	if env.Timestamp == "" {
		t.Error("timestamp is empty")
	}
}

func TestResponseEnvelope_XRequestIDHeader(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.srv.ServeHTTP(w, req)

	xReqID := w.Header().Get("X-Request-ID")
	if !strings.HasPrefix(xReqID, "req_") {
		t.Errorf("X-Request-ID header = %q, want req_ prefix", xReqID)
	}
}
