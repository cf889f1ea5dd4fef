// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/leseb/fileregistry/pkg/core/registry"
)

func init() {
	registry.Providers.Register("memory", func(_ context.Context, _ map[string]string) (registry.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ registry.Store = (*Store)(nil)

// Store is an in-memory registry store.
//
// Creates are serialized by createMu. The commit hook runs without mu held,
// so lookups are only blocked while a finished record is inserted.
type Store struct {
	createMu sync.Mutex

	mu          sync.RWMutex
	nextID      uint64
	byID        map[uint64]*registry.Record
	bySignature map[string]uint64
	byOwner     map[registry.Identity][]uint64

	now func() time.Time
}

// New creates an empty store whose first id is 1.
func New() *Store {
	return &Store{
		nextID:      1,
		byID:        make(map[uint64]*registry.Record),
		bySignature: make(map[string]uint64),
		byOwner:     make(map[registry.Identity][]uint64),
		now:         time.Now,
	}
}

// Create registers a new file.
func (s *Store) Create(ctx context.Context, owner registry.Identity, name, signature string, hook registry.CommitHook) (*registry.Record, error) {
	if err := registry.ValidateSignature(signature); err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	// Only Create mutates the indices, so they cannot change until createMu
	// is released.
	s.mu.RLock()
	_, exists := s.bySignature[signature]
	id := s.nextID
	s.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("signature %s: %w", signature, registry.ErrDuplicateSignature)
	}

	rec := &registry.Record{
		ID:        id,
		Name:      name,
		Signature: signature,
		Owner:     owner,
		CreatedAt: s.now(),
	}
	if hook != nil {
		if err := hook(ctx, cloneRecord(rec)); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.byID[rec.ID] = rec
	s.bySignature[signature] = rec.ID
	s.byOwner[owner] = append(s.byOwner[owner], rec.ID)
	s.nextID++
	s.mu.Unlock()

	return cloneRecord(rec), nil
}

// Get retrieves a record by id
func (s *Store) Get(ctx context.Context, id uint64) (*registry.Record, error) {
	if err := registry.ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if id >= s.nextID {
		return nil, fmt.Errorf("file %d: %w", id, registry.ErrIDNotFound)
	}
	return cloneRecord(s.byID[id]), nil
}

// IDBySignature returns the id registered for signature
func (s *Store) IDBySignature(ctx context.Context, signature string) (uint64, error) {
	if err := registry.ValidateSignature(signature); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.bySignature[signature]
	if !exists {
		return 0, fmt.Errorf("signature %s: %w", signature, registry.ErrSignatureNotFound)
	}
	return id, nil
}

// OwnerBySignature returns the owner of the file registered for signature
func (s *Store) OwnerBySignature(ctx context.Context, signature string) (registry.Identity, error) {
	if err := registry.ValidateSignature(signature); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.bySignature[signature]
	if !exists {
		return "", fmt.Errorf("signature %s: %w", signature, registry.ErrSignatureNotFound)
	}
	return s.byID[id].Owner, nil
}

// IDsByOwner lists the ids owned by owner in creation order
func (s *Store) IDsByOwner(ctx context.Context, owner registry.Identity) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[owner]
	if len(ids) == 0 {
		return []uint64{}, nil
	}
	return slices.Clone(ids), nil
}

// Count returns the number of registered files
func (s *Store) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nextID - 1, nil
}

// Close is a no-op.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

func cloneRecord(rec *registry.Record) *registry.Record {
	c := *rec
	return &c
}
