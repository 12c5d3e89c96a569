// Package scheduler serializes concurrent ranging requests into
// one-at-a-time dispatch to a single-capacity engine. It owns the FIFO
// admission queue, the per-request dispatch state machine, the dispatch
// timeout, and the demultiplexing of raw engine results back onto each
// request's peer list.
package scheduler

import (
	"context"
	"time"

	"github.com/me/rangerd/pkg/model"
)

// ResultSink receives the outcome of one submitted request. Exactly one of
// the two methods is invoked, exactly once per submission.
type ResultSink interface {
	OnResults(results []model.RangingResult)
	OnFailure(code model.FailureCode)
}

// Scheduler arbitrates access to the ranging engine.
//
// All entry points besides Start/Stop are asynchronous: they marshal an
// event into the scheduler's single execution context and return without
// blocking on engine, resolver, or queue work.
type Scheduler interface {
	// Start runs the event loop. Blocks until ctx is cancelled or Stop is
	// called; pending requests are failed with NotAvailable on the way out.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// Submit enqueues a request. The outcome arrives through sink.
	Submit(owner model.OwnerID, req model.RangingRequest, sink ResultSink)

	// OnResults delivers raw engine results for a dispatched command.
	OnResults(cmdID uint32, results []model.RawResult)

	// OnOwnerLost drops the owner's queued requests and cancels its
	// dispatched one, without callbacks.
	OnOwnerLost(owner model.OwnerID)

	// Enable and Disable toggle availability. Disable flushes the queue,
	// failing every pending request with NotAvailable.
	Enable()
	Disable()

	// IsAvailable reports whether submissions can currently be served.
	IsAvailable() bool

	// Dump returns a diagnostic snapshot of the queue. Advisory only.
	Dump() string
}

// Config holds scheduler configuration.
type Config struct {
	// RangingTimeout bounds a dispatched command's wait for engine results.
	RangingTimeout time.Duration

	// ResolveTimeout bounds the peer-handle resolution step. Zero means
	// resolution is unbounded.
	ResolveTimeout time.Duration

	// EventBuffer sizes the event queue feeding the worker.
	EventBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RangingTimeout: 5 * time.Second,
		ResolveTimeout: 0,
		EventBuffer:    128,
	}
}
