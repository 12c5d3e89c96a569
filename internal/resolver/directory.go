package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/rangerd/internal/store"
	"github.com/me/rangerd/pkg/model"
)

// defaultQueryTimeout bounds a single directory lookup. This is a local
// database query, distinct from the scheduler's resolution deadline policy.
const defaultQueryTimeout = 5 * time.Second

// Directory resolves handles against the peer directory in the store.
type Directory struct {
	store        store.Store
	logger       *slog.Logger
	queryTimeout time.Duration
}

// NewDirectory creates a directory-backed resolver.
func NewDirectory(st store.Store, logger *slog.Logger) *Directory {
	return &Directory{
		store:        st,
		logger:       logger.With("component", "resolver"),
		queryTimeout: defaultQueryTimeout,
	}
}

// ResolveAsync looks the handles up in the background and invokes cb once
// with whatever mappings exist. The owner is recorded for diagnostics only;
// the directory is not owner-scoped.
func (d *Directory) ResolveAsync(owner model.OwnerID, handles []model.HandleID, cb Callback) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.queryTimeout)
		defer cancel()

		addrs, err := d.store.ResolvePeers(ctx, handles)
		if err != nil {
			d.logger.Warn("directory lookup failed", "owner", owner, "error", err)
			cb(nil, err)
			return
		}
		d.logger.Debug("resolved handles",
			"owner", owner, "requested", len(handles), "resolved", len(addrs))
		cb(addrs, nil)
	}()
	return nil
}
