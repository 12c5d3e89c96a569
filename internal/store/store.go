package store

import (
	"context"
	"errors"
	"net"

	"github.com/me/rangerd/pkg/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence layer: the peer directory backing handle
// resolution and the audit history of completed ranging requests.
type Store interface {
	// Peer directory
	UpsertPeer(ctx context.Context, handle model.HandleID, addr net.HardwareAddr) error
	DeletePeer(ctx context.Context, handle model.HandleID) error
	ListPeers(ctx context.Context) ([]model.DirectoryEntry, error)

	// ResolvePeers returns the known addresses for the given handles.
	// Handles without a directory entry are absent from the result map;
	// that is not an error.
	ResolvePeers(ctx context.Context, handles []model.HandleID) (map[model.HandleID]net.HardwareAddr, error)

	// Ranging history
	RecordRanging(ctx context.Context, rec *model.RangingRecord) error
	GetRanging(ctx context.Context, id string) (*model.RangingRecord, error)
	ListRangings(ctx context.Context, opts model.ListOptions) ([]*model.RangingRecord, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
