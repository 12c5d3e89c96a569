package engine

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/me/rangerd/pkg/model"
)

// SimConfig configures the simulated engine.
type SimConfig struct {
	// Latency between command acceptance and result delivery.
	Latency time.Duration

	// BaseDistanceMm is the distance reported for the first peer; each
	// subsequent peer adds DistanceStepMm. Ignored when DistanceScript is set.
	BaseDistanceMm int
	DistanceStepMm int

	// DistanceScript is an optional JavaScript expression producing the
	// distance in millimeters for one peer. The variables "mac" (string)
	// and "index" (position in the request) are in scope.
	DistanceScript string
}

// DefaultSimConfig returns sensible defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Latency:        50 * time.Millisecond,
		BaseDistanceMm: 1000,
		DistanceStepMm: 250,
	}
}

// Sim is an in-process simulated ranging engine. It honors the engine
// contract: single outstanding command, synchronous accept/reject,
// asynchronous result delivery, cooperative cancel.
type Sim struct {
	cfg     SimConfig
	logger  *slog.Logger
	deliver ResultFunc

	prog *goja.Program

	mu        sync.Mutex
	ready     bool
	busy      bool
	cancelled map[uint32]bool
}

// NewSim creates a simulated engine. The result function is registered
// separately with SetResultFunc so the engine can be constructed before its
// consumer.
func NewSim(cfg SimConfig, logger *slog.Logger) (*Sim, error) {
	s := &Sim{
		cfg:       cfg,
		logger:    logger.With("component", "sim-engine"),
		ready:     true,
		cancelled: make(map[uint32]bool),
	}
	if cfg.DistanceScript != "" {
		prog, err := goja.Compile("distance", cfg.DistanceScript, false)
		if err != nil {
			return nil, fmt.Errorf("compile distance script: %w", err)
		}
		s.prog = prog
	}
	return s, nil
}

// SetResultFunc registers the asynchronous result consumer. Must be called
// before the first RangeRequest.
func (s *Sim) SetResultFunc(fn ResultFunc) {
	s.deliver = fn
}

// SetReady toggles the engine's readiness, simulating radio availability.
func (s *Sim) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// IsReady reports whether the engine can accept commands.
func (s *Sim) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// RangeRequest accepts the command if the engine is ready and idle. Results
// are delivered after the configured latency unless the command is
// cancelled in the meantime.
func (s *Sim) RangeRequest(cmdID uint32, req model.RangingRequest) bool {
	s.mu.Lock()
	if !s.ready || s.busy {
		reason := "busy"
		if !s.ready {
			reason = "not ready"
		}
		s.mu.Unlock()
		s.logger.Warn("command rejected", "cmd_id", cmdID, "reason", reason)
		return false
	}
	s.busy = true
	s.mu.Unlock()

	s.logger.Debug("command accepted", "cmd_id", cmdID, "peers", len(req.Peers))

	results := s.measure(req)
	time.AfterFunc(s.cfg.Latency, func() {
		s.mu.Lock()
		s.busy = false
		wasCancelled := s.cancelled[cmdID]
		delete(s.cancelled, cmdID)
		s.mu.Unlock()

		if wasCancelled {
			s.logger.Debug("command cancelled, dropping results", "cmd_id", cmdID)
			return
		}
		s.deliver(cmdID, results)
	})
	return true
}

// RangeCancel marks the command cancelled. No acknowledgment is delivered.
func (s *Sim) RangeCancel(cmdID uint32, addrs []net.HardwareAddr) {
	s.logger.Debug("cancel", "cmd_id", cmdID, "addrs", len(addrs))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[cmdID] = true
}

// measure computes one raw result per peer with a known address. Peers
// without an address are simply not reported, like a radio that cannot
// range an unknown target.
func (s *Sim) measure(req model.RangingRequest) []model.RawResult {
	now := time.Now().UnixMicro()

	var results []model.RawResult
	for i, p := range req.Peers {
		mac := p.MAC()
		if mac == nil {
			continue
		}
		dist, err := s.distance(mac, i)
		if err != nil {
			s.logger.Warn("distance script failed, reporting failure entry",
				"mac", mac.String(), "error", err)
			results = append(results, model.RawResult{
				Addr:        mac,
				Status:      model.RawStatus(1),
				TimestampUs: now,
			})
			continue
		}
		results = append(results, model.RawResult{
			Addr:             mac,
			Status:           model.RawStatusSuccess,
			DistanceMm:       dist,
			DistanceStdDevMm: dist / 20,
			RSSI:             -40 - i,
			TimestampUs:      now,
		})
	}
	return results
}

// distance evaluates the distance model for one peer.
func (s *Sim) distance(mac net.HardwareAddr, index int) (int, error) {
	if s.prog == nil {
		return s.cfg.BaseDistanceMm + index*s.cfg.DistanceStepMm, nil
	}

	vm := goja.New()
	if err := vm.Set("mac", mac.String()); err != nil {
		return 0, err
	}
	if err := vm.Set("index", index); err != nil {
		return 0, err
	}
	val, err := vm.RunProgram(s.prog)
	if err != nil {
		return 0, err
	}
	return int(val.ToInteger()), nil
}
