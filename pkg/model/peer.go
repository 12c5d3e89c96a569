package model

import (
	"encoding/json"
	"fmt"
	"net"
)

// PeerKind discriminates the two peer variants of a ranging request.
type PeerKind string

const (
	// PeerKindAddress is a peer identified by a directly-usable MAC address.
	PeerKindAddress PeerKind = "address"

	// PeerKindHandle is a peer identified by an opaque, session-scoped
	// handle whose MAC address may not be known yet.
	PeerKindHandle PeerKind = "handle"
)

// HandleID is an opaque, session-scoped peer identifier. The directory
// service owns the handle-to-address mapping.
type HandleID uint32

// OwnerID identifies the client that submitted a request. It is an opaque
// token; the scheduler only compares it for equality.
type OwnerID string

// Peer is one target of a ranging request. It is a tagged union: Kind
// selects which of the remaining fields are meaningful.
type Peer struct {
	Kind PeerKind

	// Addr is the MAC address for PeerKindAddress peers.
	Addr net.HardwareAddr

	// Handle is the opaque identifier for PeerKindHandle peers.
	Handle HandleID

	// ResolvedAddr is the MAC address filled in for PeerKindHandle peers
	// once the directory service has translated the handle. Nil until then.
	ResolvedAddr net.HardwareAddr
}

// AddressPeer returns a peer identified directly by MAC address.
func AddressPeer(addr net.HardwareAddr) Peer {
	return Peer{Kind: PeerKindAddress, Addr: addr}
}

// HandlePeer returns a peer identified by an opaque handle.
func HandlePeer(id HandleID) Peer {
	return Peer{Kind: PeerKindHandle, Handle: id}
}

// MAC returns the usable MAC address for this peer: the direct address for
// address peers, the resolved address for handle peers. Nil when a handle
// peer has not been resolved yet.
func (p Peer) MAC() net.HardwareAddr {
	switch p.Kind {
	case PeerKindAddress:
		return p.Addr
	case PeerKindHandle:
		return p.ResolvedAddr
	}
	return nil
}

// NeedsResolution reports whether this peer requires a directory lookup
// before it can be dispatched to the engine.
func (p Peer) NeedsResolution() bool {
	return p.Kind == PeerKindHandle && p.ResolvedAddr == nil
}

// Identity returns a Peer carrying only the caller-visible identity of p:
// the MAC address for address peers, the handle for handle peers. Results
// are reported against identities, never against resolved addresses.
func (p Peer) Identity() Peer {
	switch p.Kind {
	case PeerKindHandle:
		return HandlePeer(p.Handle)
	default:
		return AddressPeer(p.Addr)
	}
}

func (p Peer) String() string {
	if p.Kind == PeerKindHandle {
		if p.ResolvedAddr != nil {
			return fmt.Sprintf("handle:%d(%s)", p.Handle, p.ResolvedAddr)
		}
		return fmt.Sprintf("handle:%d(unresolved)", p.Handle)
	}
	return "mac:" + p.Addr.String()
}

// peerJSON is the wire shape of a Peer.
type peerJSON struct {
	Kind   PeerKind  `json:"kind"`
	MAC    string    `json:"mac,omitempty"`
	Handle *HandleID `json:"handle,omitempty"`
}

// MarshalJSON encodes the peer's identity. Resolved addresses of handle
// peers are deliberately not exposed.
func (p Peer) MarshalJSON() ([]byte, error) {
	out := peerJSON{Kind: p.Kind}
	switch p.Kind {
	case PeerKindAddress:
		out.MAC = p.Addr.String()
	case PeerKindHandle:
		h := p.Handle
		out.Handle = &h
	default:
		return nil, fmt.Errorf("unknown peer kind %q", p.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a peer. The kind field may be omitted when it is
// implied by the presence of exactly one of mac or handle.
func (p *Peer) UnmarshalJSON(data []byte) error {
	var in peerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	kind := in.Kind
	if kind == "" {
		switch {
		case in.MAC != "" && in.Handle == nil:
			kind = PeerKindAddress
		case in.MAC == "" && in.Handle != nil:
			kind = PeerKindHandle
		default:
			return fmt.Errorf("peer needs exactly one of mac or handle")
		}
	}

	switch kind {
	case PeerKindAddress:
		if in.MAC == "" {
			return fmt.Errorf("address peer missing mac")
		}
		addr, err := net.ParseMAC(in.MAC)
		if err != nil {
			return fmt.Errorf("parse mac %q: %w", in.MAC, err)
		}
		*p = AddressPeer(addr)
	case PeerKindHandle:
		if in.Handle == nil {
			return fmt.Errorf("handle peer missing handle")
		}
		*p = HandlePeer(*in.Handle)
	default:
		return fmt.Errorf("unknown peer kind %q", kind)
	}
	return nil
}
