// Package history defines visit history domain types and interfaces.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no visit.
var ErrNotFound = errors.New("visit not found")

// Visit records one arrival in a star system.
type Visit struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	System    string    `json:"system"`
	OnRoute   bool      `json:"on_route"`
	ArrivedAt time.Time `json:"arrived_at"`
	File      string    `json:"journal_file,omitempty"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	System    string // case-insensitive exact match
	SessionID string
	OnRoute   bool // only visits to route stops
	Limit     int
}

// Store persists visits.
type Store interface {
	Record(ctx context.Context, v Visit) (Visit, error)
	List(ctx context.Context, f Filter) ([]Visit, error)
	Last(ctx context.Context, system string) (Visit, error)
	Clear(ctx context.Context) error
}
