// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/leseb/fileregistry/pkg/core/registry"

	_ "modernc.org/sqlite"
)

func init() {
	registry.Providers.Register("sqlite", func(_ context.Context, params map[string]string) (registry.Store, error) {
		path := params["path"]
		if path == "" {
			path = ":memory:"
		}
		return New(path)
	})
}

// compile-time check
var _ registry.Store = (*Store)(nil)

// Store is a SQLite-backed registry store.
//
// The store holds a single connection, so every statement and transaction
// is serialized. Ids are allocated as MAX(id)+1 inside the create
// transaction and therefore stay dense even when a create is rolled back.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path. Use ":memory:" for a
// private in-memory database.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			signature TEXT NOT NULL UNIQUE,
			owner TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite create tables: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create registers a new file inside a single transaction.
func (s *Store) Create(ctx context.Context, owner registry.Identity, name, signature string, hook registry.CommitHook) (*registry.Record, error) {
	if err := registry.ValidateSignature(signature); err != nil {
		return nil, err
	}

	// The transaction outlives ctx: once the hook has journaled the
	// registration, a cancelled caller must not roll it back. Statements
	// before the hook still honor ctx.
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM files WHERE signature = ?`, signature).Scan(&exists)
	if err == nil {
		return nil, fmt.Errorf("signature %s: %w", signature, registry.ErrDuplicateSignature)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check signature: %w", err)
	}

	var id uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM files`).Scan(&id); err != nil {
		return nil, fmt.Errorf("allocate id: %w", err)
	}

	rec := &registry.Record{
		ID:        id,
		Name:      name,
		Signature: signature,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO files (id, name, signature, owner, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Signature, string(rec.Owner), rec.CreatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("signature %s: %w", signature, registry.ErrDuplicateSignature)
	}
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}

	if hook != nil {
		c := *rec
		if err := hook(ctx, &c); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id uint64) (*registry.Record, error) {
	if err := registry.ValidateID(id); err != nil {
		return nil, err
	}
	// SQLite integers are signed; larger ids were never allocated.
	if id > math.MaxInt64 {
		return nil, fmt.Errorf("file %d: %w", id, registry.ErrIDNotFound)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, signature, owner, created_at FROM files WHERE id = ?`, id)

	var (
		rec     registry.Record
		owner   string
		created int64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Signature, &owner, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, registry.ErrIDNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	rec.Owner = registry.Identity(owner)
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

// IDBySignature returns the id registered for signature.
func (s *Store) IDBySignature(ctx context.Context, signature string) (uint64, error) {
	if err := registry.ValidateSignature(signature); err != nil {
		return 0, err
	}

	var id uint64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM files WHERE signature = ?`, signature).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("signature %s: %w", signature, registry.ErrSignatureNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup signature: %w", err)
	}
	return id, nil
}

// OwnerBySignature returns the owner of the file registered for signature.
func (s *Store) OwnerBySignature(ctx context.Context, signature string) (registry.Identity, error) {
	if err := registry.ValidateSignature(signature); err != nil {
		return "", err
	}

	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM files WHERE signature = ?`, signature).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("signature %s: %w", signature, registry.ErrSignatureNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup owner: %w", err)
	}
	return registry.Identity(owner), nil
}

// IDsByOwner lists the ids owned by owner in creation order.
func (s *Store) IDsByOwner(ctx context.Context, owner registry.Identity) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM files WHERE owner = ? ORDER BY id`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list owner files: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of registered files.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}
