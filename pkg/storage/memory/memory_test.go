// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/storage/registrytest"
)

func TestMemoryConformance(t *testing.T) {
	registrytest.RunConformanceTests(t, func(t *testing.T) registry.Store {
		return New()
	})
}

func TestProviderRegistered(t *testing.T) {
	store, err := registry.Providers.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatalf("Providers.New: %v", err)
	}
	if _, ok := store.(*Store); !ok {
		t.Errorf("expected *memory.Store, got %T", store)
	}
}

// checkIndices verifies the internal maps agree with each other.
func checkIndices(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if uint64(len(s.byID)) != s.nextID-1 {
		t.Fatalf("byID has %d entries, nextID is %d", len(s.byID), s.nextID)
	}
	if len(s.bySignature) != len(s.byID) {
		t.Fatalf("bySignature has %d entries, byID has %d", len(s.bySignature), len(s.byID))
	}
	for id, rec := range s.byID {
		if id == 0 || id >= s.nextID {
			t.Fatalf("id %d outside [1, %d)", id, s.nextID)
		}
		if s.bySignature[rec.Signature] != id {
			t.Fatalf("bySignature[%s] = %d, want %d", rec.Signature, s.bySignature[rec.Signature], id)
		}
	}
	total := 0
	for owner, ids := range s.byOwner {
		for i, id := range ids {
			if s.byID[id].Owner != owner {
				t.Fatalf("id %d indexed under %s, owned by %s", id, owner, s.byID[id].Owner)
			}
			if i > 0 && ids[i-1] >= id {
				t.Fatalf("owner %s ids out of order: %v", owner, ids)
			}
		}
		total += len(ids)
	}
	if total != len(s.byID) {
		t.Fatalf("owner index covers %d ids, want %d", total, len(s.byID))
	}
}

func TestIndicesStayConsistent(t *testing.T) {
	s := New()
	ctx := context.Background()
	owners := []registry.Identity{"a", "b", "c"}

	for i := 1; i <= 50; i++ {
		owner := owners[i%len(owners)]
		if _, err := s.Create(ctx, owner, "file", registrytest.Signature(i), nil); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		// Every fifth create retries an earlier signature.
		if i%5 == 0 {
			if _, err := s.Create(ctx, owner, "dup", registrytest.Signature(i/2), nil); err == nil {
				t.Fatalf("expected duplicate error for signature %d", i/2)
			}
		}
		checkIndices(t, s)
	}
}

func TestCreatedAtFromClock(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	rec, err := s.Create(context.Background(), "a", "Sales report", registrytest.SalesSignature, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, fixed)
	}
}

func TestReturnedRecordIsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec, err := s.Create(ctx, "a", "Sales report", registrytest.SalesSignature, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec.Name = "changed"
	rec.Owner = "mallory"

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Sales report" || got.Owner != "a" {
		t.Errorf("stored record was mutated through returned pointer: %+v", got)
	}
}

func TestLookupsNotBlockedByHook(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Create(ctx, "a", "Sales report", registrytest.SalesSignature, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Create(ctx, "b", "IT report", registrytest.ITSignature, func(context.Context, *registry.Record) error {
			close(entered)
			<-release
			return nil
		})
		done <- err
	}()
	<-entered

	lookups := make(chan struct{})
	go func() {
		defer close(lookups)
		if id, err := s.IDBySignature(ctx, registrytest.SalesSignature); err != nil || id != 1 {
			t.Errorf("IDBySignature = %d, %v", id, err)
		}
		if _, err := s.IDBySignature(ctx, registrytest.ITSignature); !errors.Is(err, registry.ErrSignatureNotFound) {
			t.Errorf("pending record visible: %v", err)
		}
		if n, _ := s.Count(ctx); n != 1 {
			t.Errorf("Count = %d during hook, want 1", n)
		}
	}()
	select {
	case <-lookups:
	case <-time.After(2 * time.Second):
		t.Fatal("lookups blocked while the commit hook was running")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
	checkIndices(t, s)
}
