package model

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// DirectoryEntry is one handle-to-address mapping in the peer directory.
type DirectoryEntry struct {
	Handle    HandleID         `json:"handle"`
	Addr      net.HardwareAddr `json:"-"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// directoryEntryJSON is the wire shape of a DirectoryEntry.
type directoryEntryJSON struct {
	Handle    HandleID  `json:"handle"`
	MAC       string    `json:"mac"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e DirectoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(directoryEntryJSON{
		Handle:    e.Handle,
		MAC:       e.Addr.String(),
		UpdatedAt: e.UpdatedAt,
	})
}

func (e *DirectoryEntry) UnmarshalJSON(data []byte) error {
	var in directoryEntryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	addr, err := net.ParseMAC(in.MAC)
	if err != nil {
		return fmt.Errorf("parse mac %q: %w", in.MAC, err)
	}
	e.Handle = in.Handle
	e.Addr = addr
	e.UpdatedAt = in.UpdatedAt
	return nil
}
