// Package record defines the in-memory records the presenter projects:
// a typed identity, scalar attributes and loaded associations.
//
// Records are owned by a store. Projection only reads them; lazy loads are
// delegated back to the store and never written onto the record.
//
// The visited path used for cycle protection lives here as well: it is a
// value type that is copied on every push, so sibling branches of a
// concurrent projection can never observe each other's entries.
package record
