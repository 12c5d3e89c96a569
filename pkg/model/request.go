package model

import (
	"fmt"
	"net"
	"strings"
)

// RangingRequest is an ordered set of peers to range against. It is
// immutable once submitted; the scheduler works on its own copy.
type RangingRequest struct {
	Peers []Peer `json:"peers"`
}

// Validate checks the submission-boundary invariants: at least one peer,
// every peer well-formed. The scheduler itself assumes a valid request.
func (r RangingRequest) Validate() error {
	if len(r.Peers) == 0 {
		return fmt.Errorf("ranging request must contain at least one peer")
	}
	for i, p := range r.Peers {
		switch p.Kind {
		case PeerKindAddress:
			if len(p.Addr) == 0 {
				return fmt.Errorf("peer %d: address peer missing mac", i)
			}
		case PeerKindHandle:
			// nothing to check: the handle is opaque
		default:
			return fmt.Errorf("peer %d: unknown kind %q", i, p.Kind)
		}
	}
	return nil
}

// Clone returns a deep copy of the request. The scheduler clones on
// submission so that resolution never mutates caller-owned memory.
func (r RangingRequest) Clone() RangingRequest {
	peers := make([]Peer, len(r.Peers))
	copy(peers, r.Peers)
	for i := range peers {
		if peers[i].Addr != nil {
			peers[i].Addr = append(net.HardwareAddr(nil), peers[i].Addr...)
		}
		if peers[i].ResolvedAddr != nil {
			peers[i].ResolvedAddr = append(net.HardwareAddr(nil), peers[i].ResolvedAddr...)
		}
	}
	return RangingRequest{Peers: peers}
}

// KnownMACs returns the MAC addresses of all peers whose address is known
// (direct or already resolved). Used when issuing an engine cancel.
func (r RangingRequest) KnownMACs() []net.HardwareAddr {
	addrs := make([]net.HardwareAddr, 0, len(r.Peers))
	for _, p := range r.Peers {
		if mac := p.MAC(); mac != nil {
			addrs = append(addrs, mac)
		}
	}
	return addrs
}

func (r RangingRequest) String() string {
	parts := make([]string, len(r.Peers))
	for i, p := range r.Peers {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
