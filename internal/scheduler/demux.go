package scheduler

import (
	"github.com/me/rangerd/pkg/model"
)

// DemuxResults maps raw per-address engine results back onto the request's
// peer list.
//
// The output has exactly one entry per request peer, in the request's peer
// order. Peers the engine did not report get a synthesized FAIL entry with
// zero-valued measurement fields. Handle peers are identified by their
// handle in the output, never by the address they resolved to. Raw results
// that match no request peer are discarded.
func DemuxResults(req model.RangingRequest, raw []model.RawResult) []model.RangingResult {
	byAddr := make(map[string]model.RawResult, len(raw))
	for _, r := range raw {
		byAddr[r.Addr.String()] = r
	}

	final := make([]model.RangingResult, 0, len(req.Peers))
	for _, peer := range req.Peers {
		identity := peer.Identity()

		mac := peer.MAC()
		if mac == nil {
			// A handle that never resolved: nothing the engine could have
			// reported. Synthesize the failure entry.
			final = append(final, model.RangingResult{
				Status: model.ResultFail,
				Peer:   identity,
			})
			continue
		}

		r, ok := byAddr[mac.String()]
		if !ok {
			final = append(final, model.RangingResult{
				Status: model.ResultFail,
				Peer:   identity,
			})
			continue
		}

		status := model.ResultFail
		if r.Status == model.RawStatusSuccess {
			status = model.ResultSuccess
		}
		final = append(final, model.RangingResult{
			Status:           status,
			Peer:             identity,
			DistanceMm:       r.DistanceMm,
			DistanceStdDevMm: r.DistanceStdDevMm,
			RSSI:             r.RSSI,
			TimestampUs:      r.TimestampUs,
		})
	}
	return final
}
