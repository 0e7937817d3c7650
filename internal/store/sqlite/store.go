// Package sqlite persists records and their relations in SQLite and serves
// lazy association fetches from it.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"record-presenter/internal/descriptor"
	"record-presenter/internal/projector"
	"record-presenter/internal/record"
	"record-presenter/internal/store"
	"record-presenter/internal/store/sqlite/migrations"
)

// Store is a SQLite-backed record store.
type Store struct {
	projector.ResidentStore

	db *sql.DB
}

var (
	_ projector.Store = (*Store)(nil)
	_ store.Writer    = (*Store)(nil)
)

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Put inserts or replaces rec's attributes.
func (s *Store) Put(ctx context.Context, rec *record.Record) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("encode %s attributes: %w", rec.Key(), err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO records (type, id, attributes, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (type, id) DO UPDATE SET attributes = excluded.attributes, updated_at = excluded.updated_at`,
		rec.Type, rec.ID, string(attrs), time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("put %s: %w", rec.Key(), err)
	}

	return nil
}

// Link replaces association of from with the records in link, declaring
// the association on from's type if needed.
func (s *Store) Link(ctx context.Context, from *record.Record, association string, link record.Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link: %w", err)
	}

	if err := declare(ctx, tx, from.Type, association, link.IsCollection()); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM links WHERE from_type = ? AND from_id = ? AND name = ?`,
		from.Type, from.ID, association,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear %s.%s: %w", from.Key(), association, err)
	}

	for i, target := range link.Records() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO links (from_type, from_id, name, position, to_type, to_id) VALUES (?, ?, ?, ?, ?, ?)`,
			from.Type, from.ID, association, i, target.Type, target.ID,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("link %s.%s: %w", from.Key(), association, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link: %w", err)
	}

	return nil
}

func declare(ctx context.Context, tx *sql.Tx, typeName, association string, collection bool) error {
	var existing bool

	err := tx.QueryRowContext(ctx,
		`SELECT collection FROM associations WHERE type = ? AND name = ?`, typeName, association,
	).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO associations (type, name, collection) VALUES (?, ?, ?)`,
			typeName, association, collection,
		); err != nil {
			return fmt.Errorf("declare %s.%s: %w", typeName, association, err)
		}

		return nil
	case err != nil:
		return fmt.Errorf("lookup %s.%s: %w", typeName, association, err)
	case existing != collection:
		return fmt.Errorf("%s.%s: %w", typeName, association, store.ErrKindMismatch)
	}

	return nil
}

// Get returns the record with no resident associations.
func (s *Store) Get(ctx context.Context, typeName string, id any) (*record.Record, error) {
	rec := record.New(typeName, id)

	var attrs string

	err := s.db.QueryRowContext(ctx,
		`SELECT attributes FROM records WHERE type = ? AND id = ?`, rec.Type, rec.ID,
	).Scan(&attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", rec.Key(), store.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rec.Key(), err)
	}

	if rec.Attributes, err = decodeAttributes(attrs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rec.Key(), err)
	}

	return rec, nil
}

// Load returns the record with includes resident.
func (s *Store) Load(ctx context.Context, typeName string, id any, includes ...string) (*record.Record, error) {
	rec, err := s.Get(ctx, typeName, id)
	if err != nil {
		return nil, err
	}

	for _, name := range includes {
		link, err := s.FetchAssociation(ctx, rec, name)
		if err != nil {
			return nil, err
		}

		rec.Include(name, link)
	}

	return rec, nil
}

// FetchAssociation implements projector.Store. Links to records that were
// never stored are skipped.
func (s *Store) FetchAssociation(ctx context.Context, rec *record.Record, association string) (record.Link, error) {
	var collection bool

	err := s.db.QueryRowContext(ctx,
		`SELECT collection FROM associations WHERE type = ? AND name = ?`, rec.Type, association,
	).Scan(&collection)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Link{}, fmt.Errorf("%s.%s: %w", rec.Type, association, store.ErrUnknownAssociation)
	}

	if err != nil {
		return record.Link{}, fmt.Errorf("lookup %s.%s: %w", rec.Type, association, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.type, r.id, r.attributes
		   FROM links l
		   JOIN records r ON r.type = l.to_type AND r.id = l.to_id
		  WHERE l.from_type = ? AND l.from_id = ? AND l.name = ?
		  ORDER BY l.position`,
		rec.Type, rec.ID, association,
	)
	if err != nil {
		return record.Link{}, fmt.Errorf("fetch %s.%s: %w", rec.Key(), association, err)
	}
	defer rows.Close()

	var targets []*record.Record

	for rows.Next() {
		var typeName, id, attrs string
		if err := rows.Scan(&typeName, &id, &attrs); err != nil {
			return record.Link{}, fmt.Errorf("scan %s.%s: %w", rec.Key(), association, err)
		}

		target := record.New(typeName, id)
		if target.Attributes, err = decodeAttributes(attrs); err != nil {
			return record.Link{}, fmt.Errorf("decode %s: %w", target.Key(), err)
		}

		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return record.Link{}, fmt.Errorf("fetch %s.%s: %w", rec.Key(), association, err)
	}

	if collection {
		return record.Many(targets...), nil
	}

	if len(targets) == 0 {
		return record.One(nil), nil
	}

	return record.One(targets[0]), nil
}

// Schema lists the stored attribute names and declared associations of
// every type.
func (s *Store) Schema(ctx context.Context) (descriptor.Schema, error) {
	out := descriptor.Schema{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT r.type, j.key FROM records r, json_each(r.attributes) j ORDER BY r.type, j.key`)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}

	err = scanPairs(rows, func(typeName, name string) {
		ts := out[typeName]
		ts.Attributes = append(ts.Attributes, name)
		out[typeName] = ts
	})
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT type, name FROM associations ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}

	err = scanPairs(rows, func(typeName, name string) {
		ts := out[typeName]
		ts.Associations = append(ts.Associations, name)
		out[typeName] = ts
	})
	if err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}

	return out, nil
}

func scanPairs(rows *sql.Rows, fn func(a, b string)) error {
	defer rows.Close()

	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}

		fn(a, b)
	}

	return rows.Err()
}

// decodeAttributes keeps numbers as json.Number so integer ids survive.
func decodeAttributes(data string) (map[string]any, error) {
	attrs := map[string]any{}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	if err := dec.Decode(&attrs); err != nil {
		return nil, err
	}

	return attrs, nil
}
