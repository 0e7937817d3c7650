// Package store holds what the record stores share: lookup errors and the
// write interface used to seed them.
package store

import (
	"context"
	"errors"

	"record-presenter/internal/projector"
	"record-presenter/internal/record"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownAssociation is returned when a type has no association of
	// the requested name. Projections omit such associations.
	ErrUnknownAssociation = projector.ErrNoSuchAssociation
	// ErrKindMismatch is returned when an association is linked both as a
	// single record and as a collection.
	ErrKindMismatch = errors.New("association kind mismatch")
)

// Writer stores records and the relations between them.
type Writer interface {
	// Put inserts or replaces rec. Resident associations are ignored.
	Put(ctx context.Context, rec *record.Record) error
	// Link sets association of from to the records in link.
	Link(ctx context.Context, from *record.Record, association string, link record.Link) error
}

// Clone returns a copy of rec with its attributes and no resident
// associations.
func Clone(rec *record.Record) *record.Record {
	out := record.New(rec.Type, rec.ID)
	for k, v := range rec.Attributes {
		out.Attributes[k] = v
	}

	return out
}
