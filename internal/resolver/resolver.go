// Package resolver translates opaque peer handles into MAC addresses via
// the peer directory.
package resolver

import (
	"net"

	"github.com/me/rangerd/pkg/model"
)

// Callback receives the outcome of an asynchronous resolution, exactly
// once. Handles that could not be resolved are absent from the map; err is
// non-nil only when the directory itself failed.
type Callback func(addrs map[model.HandleID]net.HardwareAddr, err error)

// Resolver is the asynchronous directory boundary. ResolveAsync returns
// immediately; a non-nil error means the request could not even be issued
// (the callback will not fire in that case).
type Resolver interface {
	ResolveAsync(owner model.OwnerID, handles []model.HandleID, cb Callback) error
}
