package model

import (
	"encoding/json"
	"net"
	"time"
)

// RawStatus is the engine-side status code of a single measurement.
type RawStatus int

// RawStatusSuccess is the only raw status reported to clients as success;
// every other value maps to a failed entry.
const RawStatusSuccess RawStatus = 0

// RawResult is one per-address measurement as delivered by the engine.
// Raw results are keyed by MAC address; the demultiplexer maps them back
// onto the request's peer identities.
type RawResult struct {
	Addr             net.HardwareAddr
	Status           RawStatus
	DistanceMm       int
	DistanceStdDevMm int
	RSSI             int
	TimestampUs      int64
}

// ResultStatus is the client-visible status of a single ranging entry.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFail    ResultStatus = "FAIL"
)

// RangingResult is one client-visible measurement. Peer carries the
// identity the caller submitted: handle peers are reported by handle, never
// by their resolved address. Entries synthesized for unreported peers have
// zero-valued measurement fields.
type RangingResult struct {
	Status           ResultStatus `json:"status"`
	Peer             Peer         `json:"peer"`
	DistanceMm       int          `json:"distance_mm"`
	DistanceStdDevMm int          `json:"distance_std_dev_mm"`
	RSSI             int          `json:"rssi"`
	TimestampUs      int64        `json:"timestamp_us"`
}

// FailureCode classifies a request-level failure delivered through the
// completion sink.
type FailureCode string

const (
	// FailureGeneric covers failures with no more specific classification,
	// including results suppressed after an authorization revocation.
	FailureGeneric FailureCode = "FAIL"

	// FailureNotAvailable: the engine is disabled or not ready.
	FailureNotAvailable FailureCode = "NOT_AVAILABLE"

	// FailureEngineRejected: the engine refused the command synchronously.
	FailureEngineRejected FailureCode = "ENGINE_REJECTED"

	// FailureTimeout: no engine result arrived within the deadline.
	FailureTimeout FailureCode = "TIMEOUT"

	// FailureResolutionIncomplete: handle resolution did not produce the
	// needed addresses, or the directory service was unreachable.
	FailureResolutionIncomplete FailureCode = "RESOLUTION_INCOMPLETE"
)

// RangingOutcome records how a request concluded, for the audit history.
type RangingOutcome string

const (
	OutcomeResults RangingOutcome = "RESULTS"
	OutcomeFailure RangingOutcome = "FAILURE"
)

// RangingRecord is the persisted audit entry for a completed or failed
// ranging request.
type RangingRecord struct {
	ID          string          `json:"id"`
	Owner       OwnerID         `json:"owner"`
	CommandID   uint32          `json:"command_id"`
	Outcome     RangingOutcome  `json:"outcome"`
	FailureCode FailureCode     `json:"failure_code,omitempty"`
	Results     []RangingResult `json:"results,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// MarshalResults encodes the per-peer results for storage.
func (r *RangingRecord) MarshalResults() (string, error) {
	if r.Results == nil {
		return "[]", nil
	}
	b, err := json.Marshal(r.Results)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
