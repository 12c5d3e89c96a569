package scheduler

import (
	"net"
	"testing"

	"github.com/me/rangerd/pkg/model"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	addr, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return addr
}

func TestDemuxResults_PreservesPeerOrder(t *testing.T) {
	a := mustMAC(t, "aa:bb:cc:00:00:01")
	b := mustMAC(t, "aa:bb:cc:00:00:02")
	c := mustMAC(t, "aa:bb:cc:00:00:03")

	req := model.RangingRequest{Peers: []model.Peer{
		model.AddressPeer(a), model.AddressPeer(b), model.AddressPeer(c),
	}}

	// Engine reports in a different order.
	raw := []model.RawResult{
		{Addr: c, Status: model.RawStatusSuccess, DistanceMm: 3000},
		{Addr: a, Status: model.RawStatusSuccess, DistanceMm: 1000},
		{Addr: b, Status: model.RawStatusSuccess, DistanceMm: 2000},
	}

	final := DemuxResults(req, raw)
	if len(final) != 3 {
		t.Fatalf("got %d entries, want 3", len(final))
	}
	for i, want := range []int{1000, 2000, 3000} {
		if final[i].DistanceMm != want {
			t.Errorf("final[%d].DistanceMm = %d, want %d", i, final[i].DistanceMm, want)
		}
	}
}

func TestDemuxResults_SynthesizesMissingEntries(t *testing.T) {
	a := mustMAC(t, "aa:bb:cc:00:00:01")
	b := mustMAC(t, "aa:bb:cc:00:00:02")

	req := model.RangingRequest{Peers: []model.Peer{
		model.AddressPeer(a), model.AddressPeer(b),
	}}
	raw := []model.RawResult{
		{Addr: b, Status: model.RawStatusSuccess, DistanceMm: 2000, RSSI: -40, TimestampUs: 99},
	}

	final := DemuxResults(req, raw)
	if len(final) != 2 {
		t.Fatalf("got %d entries, want 2 (missing peer must be synthesized, not omitted)", len(final))
	}

	// Synthesized entry at position 0, zero-valued fields.
	if final[0].Status != model.ResultFail {
		t.Errorf("final[0].Status = %q, want FAIL", final[0].Status)
	}
	if final[0].DistanceMm != 0 || final[0].RSSI != 0 || final[0].TimestampUs != 0 {
		t.Errorf("synthesized entry has non-zero fields: %+v", final[0])
	}
	if final[1].Status != model.ResultSuccess || final[1].DistanceMm != 2000 {
		t.Errorf("final[1] = %+v, want success with 2000mm", final[1])
	}
}

func TestDemuxResults_HandlePeersKeepHandleIdentity(t *testing.T) {
	resolved := mustMAC(t, "aa:bb:cc:00:00:07")

	req := model.RangingRequest{Peers: []model.Peer{
		{Kind: model.PeerKindHandle, Handle: 7, ResolvedAddr: resolved},
	}}
	raw := []model.RawResult{
		{Addr: resolved, Status: model.RawStatusSuccess, DistanceMm: 1234},
	}

	final := DemuxResults(req, raw)
	if len(final) != 1 {
		t.Fatalf("got %d entries, want 1", len(final))
	}
	got := final[0]
	if got.Peer.Kind != model.PeerKindHandle || got.Peer.Handle != 7 {
		t.Errorf("Peer = %+v, want handle 7 (callers dealt in handles)", got.Peer)
	}
	if got.Peer.ResolvedAddr != nil {
		t.Error("output must not leak the resolved address")
	}
	if got.DistanceMm != 1234 {
		t.Errorf("DistanceMm = %d, want 1234", got.DistanceMm)
	}
}

func TestDemuxResults_UnresolvedHandleSynthesized(t *testing.T) {
	req := model.RangingRequest{Peers: []model.Peer{model.HandlePeer(9)}}

	final := DemuxResults(req, nil)
	if len(final) != 1 {
		t.Fatalf("got %d entries, want 1", len(final))
	}
	if final[0].Status != model.ResultFail {
		t.Errorf("Status = %q, want FAIL", final[0].Status)
	}
	if final[0].Peer.Handle != 9 {
		t.Errorf("Peer.Handle = %d, want 9", final[0].Peer.Handle)
	}
}

func TestDemuxResults_NonSuccessStatusMapsToFail(t *testing.T) {
	a := mustMAC(t, "aa:bb:cc:00:00:01")

	req := model.RangingRequest{Peers: []model.Peer{model.AddressPeer(a)}}
	raw := []model.RawResult{
		{Addr: a, Status: model.RawStatus(3), DistanceMm: 777, TimestampUs: 5},
	}

	final := DemuxResults(req, raw)
	if final[0].Status != model.ResultFail {
		t.Errorf("Status = %q, want FAIL for raw status 3", final[0].Status)
	}
	// Measurement fields are still carried through for failed entries.
	if final[0].DistanceMm != 777 {
		t.Errorf("DistanceMm = %d, want 777", final[0].DistanceMm)
	}
}

func TestDemuxResults_ExtraRawResultsDiscarded(t *testing.T) {
	a := mustMAC(t, "aa:bb:cc:00:00:01")
	stranger := mustMAC(t, "aa:bb:cc:00:00:99")

	req := model.RangingRequest{Peers: []model.Peer{model.AddressPeer(a)}}
	raw := []model.RawResult{
		{Addr: a, Status: model.RawStatusSuccess, DistanceMm: 100},
		{Addr: stranger, Status: model.RawStatusSuccess, DistanceMm: 200},
	}

	final := DemuxResults(req, raw)
	if len(final) != 1 {
		t.Fatalf("got %d entries, want 1 (results for unknown peers are thrown away)", len(final))
	}
}
