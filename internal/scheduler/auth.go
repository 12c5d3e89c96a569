package scheduler

import (
	"sync"

	"github.com/me/rangerd/pkg/model"
)

// Authorizer is consulted at result-delivery time. An owner whose
// authorization was revoked between submission and completion gets a
// generic failure instead of results.
type Authorizer interface {
	Allowed(owner model.OwnerID) bool
}

// RevocationList is an Authorizer that allows everyone except explicitly
// revoked owners. Safe for concurrent use.
type RevocationList struct {
	mu      sync.RWMutex
	revoked map[model.OwnerID]bool
}

// NewRevocationList creates an empty revocation list.
func NewRevocationList() *RevocationList {
	return &RevocationList{revoked: make(map[model.OwnerID]bool)}
}

// Allowed reports whether the owner may receive results.
func (r *RevocationList) Allowed(owner model.OwnerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.revoked[owner]
}

// Revoke marks the owner as unauthorized.
func (r *RevocationList) Revoke(owner model.OwnerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[owner] = true
}

// Restore removes a revocation.
func (r *RevocationList) Restore(owner model.OwnerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.revoked, owner)
}
