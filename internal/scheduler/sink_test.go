package scheduler

import (
	"testing"

	"github.com/me/rangerd/internal/logging"
	"github.com/me/rangerd/pkg/model"
)

type countingSink struct {
	results  int
	failures int
	lastCode model.FailureCode
}

func (s *countingSink) OnResults(results []model.RangingResult) { s.results++ }
func (s *countingSink) OnFailure(code model.FailureCode)        { s.failures++; s.lastCode = code }

func TestOneShotSink_SingleDelivery(t *testing.T) {
	inner := &countingSink{}
	sink := newOneShotSink(inner, logging.Discard())

	sink.OnResults(nil)
	if inner.results != 1 {
		t.Fatalf("results delivered %d times, want 1", inner.results)
	}
}

func TestOneShotSink_SecondDeliverySuppressed(t *testing.T) {
	inner := &countingSink{}
	sink := newOneShotSink(inner, logging.Discard())

	sink.OnResults(nil)
	sink.OnResults(nil)
	sink.OnFailure(model.FailureTimeout)

	if inner.results != 1 {
		t.Errorf("results delivered %d times, want 1", inner.results)
	}
	if inner.failures != 0 {
		t.Errorf("failure delivered after results, want suppression")
	}
}

func TestOneShotSink_FailureThenResultsSuppressed(t *testing.T) {
	inner := &countingSink{}
	sink := newOneShotSink(inner, logging.Discard())

	sink.OnFailure(model.FailureNotAvailable)
	sink.OnResults(nil)

	if inner.failures != 1 || inner.lastCode != model.FailureNotAvailable {
		t.Errorf("failures = %d (code %q), want exactly one NOT_AVAILABLE", inner.failures, inner.lastCode)
	}
	if inner.results != 0 {
		t.Errorf("results delivered after failure, want suppression")
	}
}

func TestOneShotSink_CancelConsumes(t *testing.T) {
	inner := &countingSink{}
	sink := newOneShotSink(inner, logging.Discard())

	if !sink.cancel() {
		t.Fatal("cancel of a fresh sink should succeed")
	}
	sink.OnResults(nil)
	sink.OnFailure(model.FailureGeneric)

	if inner.results != 0 || inner.failures != 0 {
		t.Errorf("cancelled sink delivered results=%d failures=%d, want none", inner.results, inner.failures)
	}
	if sink.cancel() {
		t.Error("second cancel should report already consumed")
	}
}
