// Package store defines the record-store capability Carewire consumes.
// The hosted backend owns persistence; this package only describes reads,
// counts, and writes against named collections.
package store

import (
	"context"
	"fmt"
)

// Collection names, matching the hosted backend's tables.
const (
	Profiles       = "profiles"
	TriageSessions = "triage_sessions"
	LiveMessages   = "live_chat_messages"
	Prescriptions  = "prescriptions"
	Appointments   = "appointments"
)

// Cond is an equality condition on a single field.
type Cond struct {
	Field string
	Value any
}

// PairFilter matches rows whose unordered {sender, receiver} set equals
// {A, B}: (sender=A AND receiver=B) OR (sender=B AND receiver=A).
type PairFilter struct {
	SenderField   string
	ReceiverField string
	A             string
	B             string
}

// Order is an optional sort directive.
type Order struct {
	Field string
	Desc  bool
}

// Query describes one filtered read against a collection.
type Query struct {
	Collection string
	Where      []Cond
	Pair       *PairFilter
	OrderBy    *Order
	Limit      int
}

// Store is the record-store capability: filtered and ordered reads,
// counting, insert, and update against named collections.
type Store interface {
	// Read executes q and scans the rows into dest (a pointer to a slice).
	Read(ctx context.Context, q Query, dest any) error

	// Count returns the number of rows matching q without transferring them.
	Count(ctx context.Context, q Query) (int64, error)

	// Insert creates row in the collection. The store fills identity and
	// server-assigned fields on the passed row, which becomes the
	// authoritative row.
	Insert(ctx context.Context, collection string, row any) error

	// Update applies patch to the row with the given id.
	Update(ctx context.Context, collection string, id string, patch map[string]any) error
}

// SourceError wraps a failure from one backing collection so callers can
// report it per source without aborting sibling work.
type SourceError struct {
	Collection string
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Collection, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err with its originating collection.
func NewSourceError(collection string, err error) *SourceError {
	return &SourceError{Collection: collection, Err: err}
}
