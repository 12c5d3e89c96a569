// Package engine defines the boundary to the ranging engine: a
// single-capacity backend that accepts one command at a time and delivers
// results asynchronously, tagged by command id.
package engine

import (
	"net"

	"github.com/me/rangerd/pkg/model"
)

// ResultFunc receives asynchronous per-address results for a previously
// accepted command. Implementations must be safe to call from the engine's
// own goroutines; the scheduler marshals the call into its event loop.
type ResultFunc func(cmdID uint32, results []model.RawResult)

// Engine is the adapter to a ranging backend.
//
// RangeRequest returns synchronously whether the command was accepted; an
// accepted command produces exactly one ResultFunc delivery unless it is
// cancelled first. RangeCancel is cooperative: it does not guarantee an
// acknowledgment and callers must not wait for one.
type Engine interface {
	IsReady() bool
	RangeRequest(cmdID uint32, req model.RangingRequest) bool
	RangeCancel(cmdID uint32, addrs []net.HardwareAddr)
}
