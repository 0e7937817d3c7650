package projector

import (
	"context"
	"errors"

	"record-presenter/internal/descriptor"
	"record-presenter/internal/record"
)

// ErrNoSuchAssociation is returned, possibly wrapped, by
// Store.FetchAssociation when rec's type has no association of that name.
// The projector treats it as an absent association.
var ErrNoSuchAssociation = errors.New("unknown association")

// Store is the record store capability the projector reads through.
// Implementations must be safe for concurrent use.
type Store interface {
	// FetchAssociation lazily loads an association of rec.
	FetchAssociation(ctx context.Context, rec *record.Record, association string) (record.Link, error)
	// ResidentAssociation returns an association that is already loaded on rec.
	ResidentAssociation(rec *record.Record, association string) (record.Link, bool)
	// Attribute returns the named attribute of rec and whether it is defined.
	Attribute(rec *record.Record, name string) (any, bool)
}

// Request is what to project from one record.
type Request struct {
	// Attributes is the allow-list, in output order.
	Attributes []string
	// Associations are projected after attributes, in order.
	Associations []descriptor.AssociationSpec
	// PresentationKey names the public identifier attribute (default "uuid").
	PresentationKey string
	// Policy decides what happens to associations that are not loaded.
	Policy descriptor.Policy
	// Mode is propagated to every nested record.
	Mode descriptor.Mode
}

func (r Request) presentationKey() string {
	if r.PresentationKey == "" {
		return descriptor.DefaultPresentationKey
	}

	return r.PresentationKey
}

func (r Request) mode() descriptor.Mode {
	if r.Mode == "" {
		return descriptor.ModePublic
	}

	return r.Mode
}

// Planner builds the Request for a nested record in the given mode.
type Planner interface {
	Plan(rec *record.Record, mode descriptor.Mode) (Request, error)
}

// PlannerFunc adapts a function to a Planner.
type PlannerFunc func(rec *record.Record, mode descriptor.Mode) (Request, error)

// Plan calls f(rec, mode).
func (f PlannerFunc) Plan(rec *record.Record, mode descriptor.Mode) (Request, error) {
	return f(rec, mode)
}

// ResidentStore implements the synchronous half of Store by reading the
// record itself. Stores embed it and add FetchAssociation.
type ResidentStore struct{}

// ResidentAssociation returns rec.Association(association).
func (ResidentStore) ResidentAssociation(rec *record.Record, association string) (record.Link, bool) {
	return rec.Association(association)
}

// Attribute returns rec.Attribute(name).
func (ResidentStore) Attribute(rec *record.Record, name string) (any, bool) {
	return rec.Attribute(name)
}
