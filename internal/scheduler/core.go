package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/me/rangerd/internal/engine"
	"github.com/me/rangerd/internal/resolver"
	"github.com/me/rangerd/internal/store"
	"github.com/me/rangerd/pkg/model"
)

// firstCommandID is the initial command identifier. Ids increase
// monotonically and are never reused within a scheduler's lifetime.
const firstCommandID uint32 = 1000

// historyWriteTimeout bounds the background audit write for one request.
const historyWriteTimeout = 5 * time.Second

// queuedRequest is the scheduler-owned wrapper around one submission.
// Mutated only from the event loop.
type queuedRequest struct {
	id      string
	owner   model.OwnerID
	request model.RangingRequest
	sink    *oneShotSink

	commandID     uint32 // assigned at dispatch; 0 beforehand
	dispatched    bool   // sent to the engine, awaiting result or timeout
	peersResolved bool   // resolution already attempted once

	submittedAt time.Time
}

func (q *queuedRequest) String() string {
	return fmt.Sprintf("{id=%s owner=%s cmd=%d dispatched=%t resolved=%t req=%s}",
		q.id, q.owner, q.commandID, q.dispatched, q.peersResolved, q.request)
}

// Core implements Scheduler with a single event loop: every entry point
// posts a closure onto one channel, and one goroutine runs them to
// completion in order. That single-writer discipline is what enforces the
// at-most-one-dispatched invariant without locks.
type Core struct {
	cfg      Config
	engine   engine.Engine
	resolver resolver.Resolver
	auth     Authorizer  // optional
	history  store.Store // optional
	logger   *slog.Logger
	metrics  *metrics

	events chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	enabled atomic.Bool

	// Everything below is owned by the event loop.
	queue         []*queuedRequest
	nextCommandID uint32
	timeoutSeq    uint64
	timer         *time.Timer
}

// Option configures optional Core dependencies.
type Option func(*Core)

// WithAuthorizer sets the result-delivery authorizer.
func WithAuthorizer(auth Authorizer) Option {
	return func(c *Core) { c.auth = auth }
}

// WithHistory enables audit recording of completed requests to st.
func WithHistory(st store.Store) Option {
	return func(c *Core) { c.history = st }
}

// WithMetrics registers the scheduler's Prometheus metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Core) { c.metrics = newMetrics(reg) }
}

// NewCore creates a scheduler core. Call Start to run the event loop.
func NewCore(eng engine.Engine, res resolver.Resolver, cfg Config, logger *slog.Logger, opts ...Option) *Core {
	if cfg.RangingTimeout <= 0 {
		cfg.RangingTimeout = DefaultConfig().RangingTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}

	c := &Core{
		cfg:           cfg,
		engine:        eng,
		resolver:      res,
		logger:        logger.With("component", "scheduler"),
		events:        make(chan func(), cfg.EventBuffer),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		nextCommandID: firstCommandID,
	}
	c.enabled.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	return c
}

// Start runs the event loop. Blocks until ctx is cancelled or Stop is called.
func (c *Core) Start(ctx context.Context) error {
	c.logger.Info("scheduler started",
		"ranging_timeout", c.cfg.RangingTimeout,
		"resolve_timeout", c.cfg.ResolveTimeout)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("scheduler stopping (context cancelled)")
			c.shutdown()
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("scheduler stopping (stop called)")
			c.shutdown()
			return nil
		case ev := <-c.events:
			ev()
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the loop to exit.
func (c *Core) Stop() error {
	close(c.stopCh)
	<-c.doneCh
	return nil
}

// shutdown drains already-posted events, fails every pending request, and
// releases the loop. Runs on the loop goroutine as its last act. Marking
// the scheduler unavailable first makes drained submissions fail instead of
// dispatching.
func (c *Core) shutdown() {
	c.enabled.Store(false)
	for {
		select {
		case ev := <-c.events:
			ev()
		default:
			c.failAllPending()
			close(c.doneCh)
			return
		}
	}
}

// post marshals an event into the loop. Events posted after shutdown are
// dropped.
func (c *Core) post(ev func()) {
	select {
	case c.events <- ev:
	case <-c.doneCh:
	}
}

// Sync blocks until every event posted before it has been processed.
// Used by Dump and by tests to observe a settled queue.
func (c *Core) Sync() {
	done := make(chan struct{})
	c.post(func() { close(done) })
	select {
	case <-done:
	case <-c.doneCh:
	}
}

// IsAvailable reports whether submissions can currently be served. Safe to
// call from any goroutine.
func (c *Core) IsAvailable() bool {
	return c.enabled.Load() && c.engine.IsReady()
}

// Enable marks the scheduler available and nudges the queue. The queue
// should be empty at this point; the admission attempt validates that.
func (c *Core) Enable() {
	c.logger.Info("enabled")
	c.enabled.Store(true)
	c.post(func() { c.admitNext(false) })
}

// Disable marks the scheduler unavailable and flushes the queue: every
// pending request fails with NotAvailable, a dispatched command is
// cancelled at the engine.
func (c *Core) Disable() {
	c.logger.Info("disabled")
	c.enabled.Store(false)
	c.post(c.failAllPending)
}

// Submit enqueues a request. On an unavailable scheduler the failure is
// delivered immediately, without touching the queue.
func (c *Core) Submit(owner model.OwnerID, req model.RangingRequest, sink ResultSink) {
	oneShot := newOneShotSink(sink, c.logger)

	if !c.IsAvailable() {
		c.logger.Debug("submit while unavailable", "owner", owner)
		oneShot.OnFailure(model.FailureNotAvailable)
		return
	}

	rri := &queuedRequest{
		id:          "rng_" + uuid.New().String()[:8],
		owner:       owner,
		request:     req.Clone(),
		sink:        oneShot,
		submittedAt: time.Now().UTC(),
	}

	ev := func() {
		c.queue = append(c.queue, rri)
		c.metrics.submissions.Inc()
		c.metrics.queueDepth.Set(float64(len(c.queue)))
		c.logger.Debug("queued", "id", rri.id, "owner", owner, "depth", len(c.queue))
		c.admitNext(false)
	}
	select {
	case c.events <- ev:
	case <-c.doneCh:
		// The loop is gone; the one-shot contract still holds.
		oneShot.OnFailure(model.FailureNotAvailable)
	}
}

// OnResults delivers raw engine results into the loop.
func (c *Core) OnResults(cmdID uint32, results []model.RawResult) {
	c.post(func() { c.onRangingResults(cmdID, results) })
}

// OnOwnerLost drops the owner's requests per the death contract.
func (c *Core) OnOwnerLost(owner model.OwnerID) {
	c.post(func() { c.cleanupOnOwnerLost(owner) })
}

// Dump returns a diagnostic snapshot of the queue. Advisory only.
func (c *Core) Dump() string {
	ch := make(chan string, 1)
	c.post(func() { ch <- c.dump() })
	select {
	case s := <-ch:
		return s
	case <-c.doneCh:
		return "scheduler stopped\n"
	}
}

// --- event loop internals; everything below runs on the loop goroutine ---

// admitNext advances the queue. With popHead it first removes the current
// head (the just-finished request). It then begins dispatch for the new
// head unless one is already resolving or dispatched. Idempotent.
func (c *Core) admitNext(popHead bool) {
	if popHead {
		if len(c.queue) == 0 {
			c.logger.Warn("pop requested on empty queue, ignoring")
		} else {
			c.queue = c.queue[1:]
		}
	}
	c.metrics.queueDepth.Set(float64(len(c.queue)))

	if len(c.queue) == 0 {
		return
	}

	head := c.queue[0]
	if head.peersResolved || head.dispatched {
		// A resolution or command is in flight for the head; it will
		// re-enter dispatch on its own.
		c.logger.Debug("admission no-op, head in flight", "id", head.id)
		return
	}

	c.startRanging(head)
}

// startRanging drives the head request through the dispatch state machine.
// Re-entered after resolution completes.
func (c *Core) startRanging(rri *queuedRequest) {
	if !c.IsAvailable() {
		c.logger.Debug("dispatch while unavailable", "id", rri.id)
		c.finishFailure(rri, model.FailureNotAvailable)
		c.admitNext(true)
		return
	}

	if c.resolvePeerHandles(rri) {
		return // deferred to the resolver callback, or aborted
	}

	rri.commandID = c.nextCommandID
	c.nextCommandID++

	if !c.engine.RangeRequest(rri.commandID, rri.request) {
		c.logger.Warn("engine rejected command", "id", rri.id, "cmd_id", rri.commandID)
		c.finishFailure(rri, model.FailureEngineRejected)
		c.admitNext(true)
		return
	}

	rri.dispatched = true
	c.armTimeout()
	c.logger.Debug("dispatched", "id", rri.id, "cmd_id", rri.commandID)
}

// resolvePeerHandles checks the request for handle peers without an
// address. If there are any it issues an asynchronous directory resolution
// and reports true (dispatch deferred). A repeat attempt with addresses
// still missing is a permanent failure: the guard against a resolver that
// silently fails to fill everything in.
func (c *Core) resolvePeerHandles(rri *queuedRequest) bool {
	var pending []model.HandleID
	for _, p := range rri.request.Peers {
		if p.NeedsResolution() {
			pending = append(pending, p.Handle)
		}
	}
	if len(pending) == 0 {
		return false
	}

	if rri.peersResolved {
		c.logger.Warn("handles resolved but addresses still missing", "id", rri.id)
		c.finishFailure(rri, model.FailureResolutionIncomplete)
		c.admitNext(true)
		return true // aborted: the queue has moved on
	}
	rri.peersResolved = true

	err := c.resolver.ResolveAsync(rri.owner, pending, func(addrs map[model.HandleID]net.HardwareAddr, cbErr error) {
		c.post(func() { c.onPeerAddresses(rri, addrs, cbErr) })
	})
	if err != nil {
		c.logger.Warn("resolver unreachable", "id", rri.id, "error", err)
		c.finishFailure(rri, model.FailureResolutionIncomplete)
		c.admitNext(true)
		return true // aborted
	}

	if c.cfg.ResolveTimeout > 0 {
		time.AfterFunc(c.cfg.ResolveTimeout, func() {
			c.post(func() { c.onResolveTimeout(rri) })
		})
	}

	c.logger.Debug("resolving handles", "id", rri.id, "handles", len(pending))
	return true // deferred
}

// onPeerAddresses applies a resolver callback and re-enters dispatch.
func (c *Core) onPeerAddresses(rri *queuedRequest, addrs map[model.HandleID]net.HardwareAddr, err error) {
	if len(c.queue) == 0 || c.queue[0] != rri {
		// The request was removed while resolution was in flight (owner
		// death, disable, resolve timeout). Never apply a stale resolution.
		c.logger.Debug("stale resolution discarded", "id", rri.id)
		return
	}

	if err != nil {
		c.logger.Warn("resolution failed", "id", rri.id, "error", err)
		c.finishFailure(rri, model.FailureResolutionIncomplete)
		c.admitNext(true)
		return
	}

	for i := range rri.request.Peers {
		p := &rri.request.Peers[i]
		if p.NeedsResolution() {
			if addr, ok := addrs[p.Handle]; ok {
				p.ResolvedAddr = addr
			}
		}
	}

	// Re-enter dispatch. peersResolved is set, so still-missing addresses
	// now fail permanently instead of looping.
	c.startRanging(rri)
}

// onResolveTimeout enforces the optional resolution deadline.
func (c *Core) onResolveTimeout(rri *queuedRequest) {
	if len(c.queue) == 0 || c.queue[0] != rri || rri.dispatched {
		return // resolution completed first, or the request is gone
	}
	c.logger.Warn("resolution deadline exceeded", "id", rri.id)
	c.finishFailure(rri, model.FailureResolutionIncomplete)
	c.admitNext(true)
}

// onRangingResults applies engine results to the dispatched head.
func (c *Core) onRangingResults(cmdID uint32, results []model.RawResult) {
	if len(c.queue) == 0 {
		c.logger.Error("results with no request pending", "cmd_id", cmdID)
		c.metrics.staleResults.Inc()
		return
	}

	head := c.queue[0]
	if head.commandID != cmdID {
		c.logger.Error("results for wrong command discarded",
			"cmd_id", cmdID, "dispatched_cmd_id", head.commandID)
		c.metrics.staleResults.Inc()
		return
	}

	c.cancelTimeout()

	if c.auth != nil && !c.auth.Allowed(head.owner) {
		c.logger.Warn("authorization revoked, suppressing results",
			"id", head.id, "owner", head.owner)
		head.sink.OnFailure(model.FailureGeneric)
		c.metrics.completions.WithLabelValues(outcomeSuppressed).Inc()
		c.recordOutcome(head, model.OutcomeFailure, model.FailureGeneric, nil)
		c.admitNext(true)
		return
	}

	final := DemuxResults(head.request, results)
	head.sink.OnResults(final)
	c.metrics.completions.WithLabelValues(outcomeResults).Inc()
	c.recordOutcome(head, model.OutcomeResults, "", final)
	c.logger.Debug("completed", "id", head.id, "cmd_id", cmdID, "results", len(final))

	c.admitNext(true)
}

// onRangingTimeout fires when a dispatched command produced no result
// within the deadline. seq guards against a timer that fired concurrently
// with its cancellation.
func (c *Core) onRangingTimeout(seq uint64) {
	if seq != c.timeoutSeq {
		return // already cancelled
	}
	if len(c.queue) == 0 {
		c.logger.Warn("timeout with empty queue")
		return
	}
	head := c.queue[0]
	if !head.dispatched {
		c.logger.Warn("timeout but head not dispatched", "id", head.id)
		return
	}

	c.logger.Warn("ranging timed out", "id", head.id, "cmd_id", head.commandID)
	c.cancelRanging(head)
	c.finishFailure(head, model.FailureTimeout)
	c.admitNext(true)
}

// cleanupOnOwnerLost implements the owner-death contract: queued-but-not-
// dispatched requests of that owner vanish silently; a dispatched head is
// cancelled at the engine and removed, its sink consumed so that a late
// result can never fire a callback for the dead owner.
func (c *Core) cleanupOnOwnerLost(owner model.OwnerID) {
	c.logger.Debug("owner lost", "owner", owner, "depth", len(c.queue))

	kept := c.queue[:0]
	for _, rri := range c.queue {
		if rri.owner != owner {
			kept = append(kept, rri)
			continue
		}
		if rri.dispatched {
			c.logger.Info("owner lost, cancelling dispatched command",
				"id", rri.id, "cmd_id", rri.commandID)
			c.cancelTimeout()
			c.cancelRanging(rri)
		}
		rri.sink.cancel()
	}
	c.queue = kept
	c.metrics.queueDepth.Set(float64(len(c.queue)))

	// The head may have changed; drive the next admission.
	c.admitNext(false)
}

// failAllPending flushes the whole queue, cancelling a dispatched command
// and failing every request with NotAvailable. Used by Disable and by
// shutdown.
func (c *Core) failAllPending() {
	for _, rri := range c.queue {
		if rri.dispatched {
			// The engine may already have dropped the command, but a
			// redundant cancel is harmless.
			c.cancelRanging(rri)
		}
		c.finishFailure(rri, model.FailureNotAvailable)
	}
	c.queue = nil
	c.metrics.queueDepth.Set(0)
	c.cancelTimeout()
}

// finishFailure delivers a failure and records it. Does not touch the queue.
func (c *Core) finishFailure(rri *queuedRequest, code model.FailureCode) {
	rri.sink.OnFailure(code)
	c.metrics.completions.WithLabelValues(outcomeFailure).Inc()
	c.recordOutcome(rri, model.OutcomeFailure, code, nil)
}

// cancelRanging issues an engine cancel for every known address of the
// request. Cooperative: no acknowledgment is awaited.
func (c *Core) cancelRanging(rri *queuedRequest) {
	c.engine.RangeCancel(rri.commandID, rri.request.KnownMACs())
}

// armTimeout (re)arms the single outstanding dispatch deadline.
func (c *Core) armTimeout() {
	c.cancelTimeout()
	seq := c.timeoutSeq
	c.timer = time.AfterFunc(c.cfg.RangingTimeout, func() {
		c.post(func() { c.onRangingTimeout(seq) })
	})
}

// cancelTimeout stops the pending deadline, if any. Bumping the sequence
// invalidates a timer that already fired but has not been processed yet.
func (c *Core) cancelTimeout() {
	c.timeoutSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// recordOutcome writes the audit record in the background. History is
// advisory; a write failure is logged, never surfaced.
func (c *Core) recordOutcome(rri *queuedRequest, outcome model.RangingOutcome, code model.FailureCode, results []model.RangingResult) {
	if c.history == nil {
		return
	}
	rec := &model.RangingRecord{
		ID:          rri.id,
		Owner:       rri.owner,
		CommandID:   rri.commandID,
		Outcome:     outcome,
		FailureCode: code,
		Results:     results,
		SubmittedAt: rri.submittedAt,
		CompletedAt: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := c.history.RecordRanging(ctx, rec); err != nil {
			c.logger.Error("record ranging", "id", rec.ID, "error", err)
		}
	}()
}

// dump renders the diagnostic snapshot.
func (c *Core) dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "available: %t\n", c.IsAvailable())
	fmt.Fprintf(&b, "next command id: %d\n", c.nextCommandID)
	fmt.Fprintf(&b, "queue length: %d\n", len(c.queue))
	for i, rri := range c.queue {
		fmt.Fprintf(&b, "  [%d] %s\n", i, rri)
	}
	return b.String()
}
