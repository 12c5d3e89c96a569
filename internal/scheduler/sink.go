package scheduler

import (
	"log/slog"
	"sync/atomic"

	"github.com/me/rangerd/pkg/model"
)

// oneShotSink wraps a caller-supplied ResultSink into a consumable token:
// the first delivery wins, a second is logged and dropped, never forwarded.
// cancel consumes the token silently, for owners that are gone.
type oneShotSink struct {
	sink     ResultSink
	logger   *slog.Logger
	consumed atomic.Bool
}

func newOneShotSink(sink ResultSink, logger *slog.Logger) *oneShotSink {
	return &oneShotSink{sink: sink, logger: logger}
}

func (s *oneShotSink) OnResults(results []model.RangingResult) {
	if !s.consumed.CompareAndSwap(false, true) {
		s.logger.Error("duplicate completion suppressed", "kind", "results")
		return
	}
	s.sink.OnResults(results)
}

func (s *oneShotSink) OnFailure(code model.FailureCode) {
	if !s.consumed.CompareAndSwap(false, true) {
		s.logger.Error("duplicate completion suppressed", "kind", "failure", "code", code)
		return
	}
	s.sink.OnFailure(code)
}

// cancel consumes the token without delivering anything. Returns false if a
// delivery already happened.
func (s *oneShotSink) cancel() bool {
	return s.consumed.CompareAndSwap(false, true)
}
