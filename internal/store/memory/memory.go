// Package memory is an in-memory record store. It counts lazy fetches and
// can be told to fail them, which makes it the store of choice for tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"record-presenter/internal/descriptor"
	"record-presenter/internal/projector"
	"record-presenter/internal/record"
	"record-presenter/internal/store"
)

type relation struct {
	targets    []record.Key
	collection bool
}

// Store keeps records and relations in maps guarded by a RWMutex.
type Store struct {
	projector.ResidentStore

	mu        sync.RWMutex
	records   map[record.Key]*record.Record
	kinds     map[string]map[string]bool
	relations map[record.Key]map[string]relation
	fetches   map[string]int
	failures  map[string]error
}

var (
	_ projector.Store = (*Store)(nil)
	_ store.Writer    = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		records:   map[record.Key]*record.Record{},
		kinds:     map[string]map[string]bool{},
		relations: map[record.Key]map[string]relation{},
		fetches:   map[string]int{},
		failures:  map[string]error{},
	}
}

// Put stores a copy of rec.
func (s *Store) Put(ctx context.Context, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Key()] = store.Clone(rec)

	return nil
}

// Link relates from to the records in link and declares association on
// from's type.
func (s *Store) Link(ctx context.Context, from *record.Record, association string, link record.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.declare(from.Type, association, link.IsCollection()); err != nil {
		return err
	}

	rel := relation{collection: link.IsCollection()}
	for _, r := range link.Records() {
		rel.targets = append(rel.targets, r.Key())
	}

	byName, ok := s.relations[from.Key()]
	if !ok {
		byName = map[string]relation{}
		s.relations[from.Key()] = byName
	}

	byName[association] = rel

	return nil
}

// Declare registers association on typeName without linking any record.
func (s *Store) Declare(typeName, association string, collection bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.declare(typeName, association, collection)
}

func (s *Store) declare(typeName, association string, collection bool) error {
	assocs, ok := s.kinds[typeName]
	if !ok {
		assocs = map[string]bool{}
		s.kinds[typeName] = assocs
	}

	if existing, ok := assocs[association]; ok && existing != collection {
		return fmt.Errorf("%s.%s: %w", typeName, association, store.ErrKindMismatch)
	}

	assocs[association] = collection

	return nil
}

// Get returns a copy of the record with no resident associations.
func (s *Store) Get(ctx context.Context, typeName string, id any) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(record.Key{ID: record.FormatID(id), Type: typeName})
}

// Load returns a copy of the record with includes resident, the way an ORM
// eager-loads associations.
func (s *Store) Load(ctx context.Context, typeName string, id any, includes ...string) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.get(record.Key{ID: record.FormatID(id), Type: typeName})
	if err != nil {
		return nil, err
	}

	for _, name := range includes {
		link, err := s.resolve(rec, name)
		if err != nil {
			return nil, err
		}

		rec.Include(name, link)
	}

	return rec, nil
}

// FetchAssociation implements projector.Store.
func (s *Store) FetchAssociation(ctx context.Context, rec *record.Record, association string) (record.Link, error) {
	if err := ctx.Err(); err != nil {
		return record.Link{}, err
	}

	k := fetchKey(rec.Type, association)

	s.mu.Lock()
	s.fetches[rec.Key().String()+"."+association]++
	err := s.failures[k]
	s.mu.Unlock()

	if err != nil {
		return record.Link{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resolve(rec, association)
}

// FailFetch makes every fetch of association on typeName return err. A nil
// err clears the failure.
func (s *Store) FailFetch(typeName, association string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, fetchKey(typeName, association))
		return
	}

	s.failures[fetchKey(typeName, association)] = err
}

// Fetches returns how often association was fetched for rec.
func (s *Store) Fetches(rec *record.Record, association string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fetches[rec.Key().String()+"."+association]
}

// TotalFetches returns the number of lazy fetches served.
func (s *Store) TotalFetches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.fetches {
		n += c
	}

	return n
}

// ResetFetches clears the fetch counters.
func (s *Store) ResetFetches() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches = map[string]int{}
}

// Schema lists the attributes seen on stored records and the declared
// associations of every type.
func (s *Store) Schema() descriptor.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := descriptor.Schema{}

	for k, rec := range s.records {
		ts := out[k.Type]
		for name := range rec.Attributes {
			if !slices.Contains(ts.Attributes, name) {
				ts.Attributes = append(ts.Attributes, name)
			}
		}

		out[k.Type] = ts
	}

	for typeName, assocs := range s.kinds {
		ts := out[typeName]
		for name := range assocs {
			ts.Associations = append(ts.Associations, name)
		}

		out[typeName] = ts
	}

	for name, ts := range out {
		sort.Strings(ts.Attributes)
		sort.Strings(ts.Associations)
		out[name] = ts
	}

	return out
}

func (s *Store) get(k record.Key) (*record.Record, error) {
	rec, ok := s.records[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", k, store.ErrNotFound)
	}

	return store.Clone(rec), nil
}

// resolve builds the link for association of rec. Targets that were never
// stored are skipped.
func (s *Store) resolve(rec *record.Record, association string) (record.Link, error) {
	collection, ok := s.kinds[rec.Type][association]
	if !ok {
		return record.Link{}, fmt.Errorf("%s.%s: %w", rec.Type, association, store.ErrUnknownAssociation)
	}

	rel := s.relations[rec.Key()][association]

	var targets []*record.Record

	for _, k := range rel.targets {
		if t, ok := s.records[k]; ok {
			targets = append(targets, store.Clone(t))
		}
	}

	if collection {
		return record.Many(targets...), nil
	}

	if len(targets) == 0 {
		return record.One(nil), nil
	}

	return record.One(targets[0]), nil
}

func fetchKey(typeName, association string) string {
	return typeName + "." + association
}
