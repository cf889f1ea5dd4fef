// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registrytest provides a shared conformance test suite for
// registry.Store implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package registrytest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/leseb/fileregistry/pkg/core/registry"
)

// Fixture signatures, SHA-256 fingerprints of three sample reports.
const (
	SalesSignature     = "19ca4f27c55c6912f88cf47d1ef1e0c2f097456a50cb882b9b49e8a244dadb58"
	MarketingSignature = "cd03d7b1d7f7ca51873b0078d52f0bba08896375078e74b3d3b98814460d7eca"
	ITSignature        = "3d7d563d3f83b1745d5c2cec3ee8e7d5aea141f0013a9c66551b6d8a95f211d7"
)

const (
	alice registry.Identity = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bob   registry.Identity = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

// Signature returns a distinct valid signature for n.
func Signature(n int) string {
	return fmt.Sprintf("%064x", n)
}

// NewStoreFunc provides an isolated, empty store for one sub-test.
type NewStoreFunc func(t *testing.T) registry.Store

// recorder collects notifications in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []registry.Event
}

func (r *recorder) Notify(_ context.Context, ev registry.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []registry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func open(t *testing.T, newStore NewStoreFunc) (*registry.Registry, registry.Store, *recorder) {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { store.Close(context.Background()) })
	rec := &recorder{}
	return registry.New(store, registry.WithNotifier(rec)), store, rec
}

func mustCreate(t *testing.T, reg *registry.Registry, owner registry.Identity, name, signature string) uint64 {
	t.Helper()
	id, err := reg.Create(context.Background(), owner, name, signature)
	if err != nil {
		t.Fatalf("Create(%q, %q): %v", name, signature, err)
	}
	return id
}

func mustCount(t *testing.T, reg *registry.Registry) uint64 {
	t.Helper()
	n, err := reg.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

// RunConformanceTests exercises a Store implementation against the shared
// contract, both directly and through registry.Registry.
func RunConformanceTests(t *testing.T, newStore NewStoreFunc) {
	t.Helper()

	t.Run("CreateAndLookup", func(t *testing.T) {
		reg, _, rec := open(t, newStore)
		ctx := context.Background()

		id := mustCreate(t, reg, alice, "Sales report", SalesSignature)
		if id != 1 {
			t.Fatalf("expected first id 1, got %d", id)
		}

		got, err := reg.LookupID(ctx, SalesSignature)
		if err != nil {
			t.Fatalf("LookupID: %v", err)
		}
		if got != 1 {
			t.Errorf("LookupID = %d, want 1", got)
		}

		want := []registry.Event{{ID: 1, Name: "Sales report", Signature: SalesSignature}}
		if events := rec.snapshot(); !slices.Equal(events, want) {
			t.Errorf("events = %+v, want %+v", events, want)
		}

		r, err := reg.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if r.ID != 1 || r.Name != "Sales report" || r.Signature != SalesSignature || r.Owner != alice {
			t.Errorf("Get returned unexpected record: %+v", r)
		}
		if r.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("SequentialIDs", func(t *testing.T) {
		reg, _, rec := open(t, newStore)

		for i := 1; i <= 5; i++ {
			id := mustCreate(t, reg, alice, fmt.Sprintf("file-%d", i), Signature(i))
			if id != uint64(i) {
				t.Fatalf("creation %d returned id %d", i, id)
			}
		}
		if n := mustCount(t, reg); n != 5 {
			t.Errorf("Count = %d, want 5", n)
		}
		events := rec.snapshot()
		if len(events) != 5 {
			t.Fatalf("expected 5 events, got %d", len(events))
		}
		for i, ev := range events {
			if ev.ID != uint64(i+1) {
				t.Errorf("event %d has id %d", i, ev.ID)
			}
		}
	})

	t.Run("InvalidSignatureLength", func(t *testing.T) {
		reg, store, rec := open(t, newStore)
		ctx := context.Background()
		mustCreate(t, reg, alice, "Sales report", SalesSignature)
		before := Capture(t, store, []string{SalesSignature}, []registry.Identity{alice})

		bad := []string{"", "too short", "too long" + SalesSignature, SalesSignature[:63], SalesSignature + "0"}
		for _, sig := range bad {
			if _, err := reg.Create(ctx, alice, "x", sig); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("Create(%q): expected ErrInvalidSignatureLength, got %v", sig, err)
			}
			if _, err := store.Create(ctx, alice, "x", sig, nil); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("store.Create(%q): expected ErrInvalidSignatureLength, got %v", sig, err)
			}
			if _, err := reg.LookupID(ctx, sig); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("LookupID(%q): expected ErrInvalidSignatureLength, got %v", sig, err)
			}
			if _, err := store.IDBySignature(ctx, sig); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("store.IDBySignature(%q): expected ErrInvalidSignatureLength, got %v", sig, err)
			}
			if _, err := reg.LookupOwnerBySignature(ctx, sig); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("LookupOwnerBySignature(%q): expected ErrInvalidSignatureLength, got %v", sig, err)
			}
			if _, err := store.OwnerBySignature(ctx, sig); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("store.OwnerBySignature(%q): expected ErrInvalidSignatureLength, got %v", sig, err)
			}
		}

		if diff := before.Diff(Capture(t, store, []string{SalesSignature}, []registry.Identity{alice})); diff != "" {
			t.Errorf("state changed after rejected creates (-before +after):\n%s", diff)
		}
		if events := rec.snapshot(); len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}
		if id := mustCreate(t, reg, bob, "Marketing report", MarketingSignature); id != 2 {
			t.Errorf("expected id 2 after rejected creates, got %d", id)
		}
	})

	t.Run("DuplicateSignature", func(t *testing.T) {
		reg, store, rec := open(t, newStore)
		ctx := context.Background()
		mustCreate(t, reg, alice, "Sales report", SalesSignature)

		before := Capture(t, store, []string{SalesSignature}, []registry.Identity{alice, bob})

		for _, owner := range []registry.Identity{alice, bob} {
			if _, err := reg.Create(ctx, owner, "Sales report again", SalesSignature); !errors.Is(err, registry.ErrDuplicateSignature) {
				t.Errorf("Create by %s: expected ErrDuplicateSignature, got %v", owner, err)
			}
		}

		after := Capture(t, store, []string{SalesSignature}, []registry.Identity{alice, bob})
		if diff := before.Diff(after); diff != "" {
			t.Errorf("state changed after duplicate (-before +after):\n%s", diff)
		}
		if events := rec.snapshot(); len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}
	})

	t.Run("LengthCheckedBeforeDuplicate", func(t *testing.T) {
		reg, _, _ := open(t, newStore)
		ctx := context.Background()
		mustCreate(t, reg, alice, "Sales report", SalesSignature)

		// A longer signature that starts with a registered one is still a length error.
		_, err := reg.Create(ctx, alice, "x", SalesSignature+SalesSignature)
		if !errors.Is(err, registry.ErrInvalidSignatureLength) {
			t.Errorf("expected ErrInvalidSignatureLength, got %v", err)
		}
	})

	t.Run("SignatureNotFound", func(t *testing.T) {
		reg, _, _ := open(t, newStore)
		ctx := context.Background()

		if _, err := reg.LookupID(ctx, SalesSignature); !errors.Is(err, registry.ErrSignatureNotFound) {
			t.Errorf("LookupID: expected ErrSignatureNotFound, got %v", err)
		}
		if _, err := reg.LookupOwnerBySignature(ctx, SalesSignature); !errors.Is(err, registry.ErrSignatureNotFound) {
			t.Errorf("LookupOwnerBySignature: expected ErrSignatureNotFound, got %v", err)
		}
	})

	t.Run("LookupOwner", func(t *testing.T) {
		reg, store, _ := open(t, newStore)
		ctx := context.Background()

		if _, err := reg.LookupOwner(ctx, 1); !errors.Is(err, registry.ErrIDNotFound) {
			t.Errorf("LookupOwner(1) on empty registry: expected ErrIDNotFound, got %v", err)
		}
		if _, err := reg.LookupOwner(ctx, 0); !errors.Is(err, registry.ErrInvalidID) {
			t.Errorf("LookupOwner(0): expected ErrInvalidID, got %v", err)
		}

		mustCreate(t, reg, alice, "Sales report", SalesSignature)

		owner, err := reg.LookupOwner(ctx, 1)
		if err != nil {
			t.Fatalf("LookupOwner(1): %v", err)
		}
		if owner != alice {
			t.Errorf("LookupOwner(1) = %q, want %q", owner, alice)
		}
		if _, err := reg.LookupOwner(ctx, 0); !errors.Is(err, registry.ErrInvalidID) {
			t.Errorf("LookupOwner(0): expected ErrInvalidID, got %v", err)
		}
		if _, err := store.Get(ctx, 0); !errors.Is(err, registry.ErrInvalidID) {
			t.Errorf("store.Get(0): expected ErrInvalidID, got %v", err)
		}
		for _, id := range []uint64{2, 3, 1 << 40} {
			if _, err := reg.LookupOwner(ctx, id); !errors.Is(err, registry.ErrIDNotFound) {
				t.Errorf("LookupOwner(%d): expected ErrIDNotFound, got %v", id, err)
			}
		}
	})

	t.Run("LookupOwnerBySignature", func(t *testing.T) {
		reg, _, _ := open(t, newStore)
		ctx := context.Background()

		mustCreate(t, reg, alice, "Sales report", SalesSignature)
		mustCreate(t, reg, bob, "Marketing report", MarketingSignature)

		for _, sig := range []string{SalesSignature, MarketingSignature} {
			id, err := reg.LookupID(ctx, sig)
			if err != nil {
				t.Fatalf("LookupID: %v", err)
			}
			byID, err := reg.LookupOwner(ctx, id)
			if err != nil {
				t.Fatalf("LookupOwner: %v", err)
			}
			bySig, err := reg.LookupOwnerBySignature(ctx, sig)
			if err != nil {
				t.Fatalf("LookupOwnerBySignature: %v", err)
			}
			if byID != bySig {
				t.Errorf("owner mismatch for %s: by id %q, by signature %q", sig, byID, bySig)
			}
		}
		owner, _ := reg.LookupOwnerBySignature(ctx, MarketingSignature)
		if owner != bob {
			t.Errorf("expected bob to own the marketing report, got %q", owner)
		}
	})

	t.Run("ListIDsByOwner", func(t *testing.T) {
		reg, _, _ := open(t, newStore)
		ctx := context.Background()

		empty, err := reg.ListIDsByOwner(ctx, alice)
		if err != nil {
			t.Fatalf("ListIDsByOwner: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", empty)
		}

		mustCreate(t, reg, alice, "Sales report", SalesSignature)
		mustCreate(t, reg, bob, "Marketing report", MarketingSignature)
		mustCreate(t, reg, alice, "IT report", ITSignature)

		aliceIDs, err := reg.ListIDsByOwner(ctx, alice)
		if err != nil {
			t.Fatalf("ListIDsByOwner(alice): %v", err)
		}
		if !slices.Equal(aliceIDs, []uint64{1, 3}) {
			t.Errorf("alice ids = %v, want [1 3]", aliceIDs)
		}
		bobIDs, err := reg.ListIDsByOwner(ctx, bob)
		if err != nil {
			t.Fatalf("ListIDsByOwner(bob): %v", err)
		}
		if !slices.Equal(bobIDs, []uint64{2}) {
			t.Errorf("bob ids = %v, want [2]", bobIDs)
		}

		// The returned slice is a copy.
		aliceIDs[0] = 99
		again, _ := reg.ListIDsByOwner(ctx, alice)
		if !slices.Equal(again, []uint64{1, 3}) {
			t.Errorf("store state leaked through returned slice: %v", again)
		}
	})

	t.Run("EmptyNameAndOwner", func(t *testing.T) {
		reg, _, _ := open(t, newStore)
		ctx := context.Background()

		id := mustCreate(t, reg, "", "", SalesSignature)
		r, err := reg.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if r.Name != "" || r.Owner != "" {
			t.Errorf("unexpected record: %+v", r)
		}
		ids, _ := reg.ListIDsByOwner(ctx, "")
		if !slices.Equal(ids, []uint64{id}) {
			t.Errorf("ids for empty owner = %v", ids)
		}
	})

	t.Run("HookFailureAbortsCreate", func(t *testing.T) {
		store := newStore(t)
		t.Cleanup(func() { store.Close(context.Background()) })
		ctx := context.Background()
		boom := errors.New("journal unavailable")

		_, err := store.Create(ctx, alice, "Sales report", SalesSignature, func(_ context.Context, rec *registry.Record) error {
			if rec.ID != 1 {
				t.Errorf("hook saw id %d, want 1", rec.ID)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected hook error, got %v", err)
		}

		if n, _ := store.Count(ctx); n != 0 {
			t.Errorf("Count = %d after aborted create, want 0", n)
		}
		if _, err := store.IDBySignature(ctx, SalesSignature); !errors.Is(err, registry.ErrSignatureNotFound) {
			t.Errorf("expected ErrSignatureNotFound after aborted create, got %v", err)
		}
		if ids, _ := store.IDsByOwner(ctx, alice); len(ids) != 0 {
			t.Errorf("expected no ids for alice, got %v", ids)
		}

		rec, err := store.Create(ctx, alice, "Sales report", SalesSignature, nil)
		if err != nil {
			t.Fatalf("Create after aborted create: %v", err)
		}
		if rec.ID != 1 {
			t.Errorf("expected id 1 to be reused after abort, got %d", rec.ID)
		}
	})

	t.Run("CancelAfterHookStillCommits", func(t *testing.T) {
		store := newStore(t)
		t.Cleanup(func() { store.Close(context.Background()) })
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var notified []registry.Event
		reg := registry.New(store, registry.WithNotifier(registry.NotifierFunc(func(_ context.Context, ev registry.Event) error {
			notified = append(notified, ev)
			cancel()
			return nil
		})))

		id, err := reg.Create(ctx, alice, "Sales report", SalesSignature)
		if err != nil {
			t.Fatalf("Create with ctx cancelled after notification: %v", err)
		}
		if id != 1 {
			t.Errorf("id = %d, want 1", id)
		}

		bg := context.Background()
		if n, _ := store.Count(bg); n != 1 {
			t.Errorf("Count = %d, want 1", n)
		}
		if got, err := store.IDBySignature(bg, SalesSignature); err != nil || got != 1 {
			t.Errorf("IDBySignature = %d, %v; want 1", got, err)
		}

		id2, err := reg.Create(bg, bob, "Marketing report", MarketingSignature)
		if err != nil {
			t.Fatalf("second Create: %v", err)
		}
		if id2 != 2 {
			t.Errorf("second id = %d, want 2; id 1 was handed out twice", id2)
		}
		want := []registry.Event{
			{ID: 1, Name: "Sales report", Signature: SalesSignature},
			{ID: 2, Name: "Marketing report", Signature: MarketingSignature},
		}
		if !slices.Equal(notified, want) {
			t.Errorf("notifications = %+v, want %+v", notified, want)
		}
	})

	t.Run("ConcurrentDistinctSignatures", func(t *testing.T) {
		store := newStore(t)
		t.Cleanup(func() { store.Close(context.Background()) })
		ctx := context.Background()

		const n = 32
		ids := make([]uint64, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec, err := store.Create(ctx, alice, "concurrent", Signature(i+1), nil)
				if err == nil {
					ids[i] = rec.ID
				}
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("create %d: %v", i, err)
			}
		}
		slices.Sort(ids)
		for i, id := range ids {
			if id != uint64(i+1) {
				t.Fatalf("ids are not dense: %v", ids)
			}
		}
		owned, _ := store.IDsByOwner(ctx, alice)
		if !slices.IsSorted(owned) || len(owned) != n {
			t.Errorf("owner index out of order or incomplete: %v", owned)
		}
	})

	t.Run("ConcurrentSameSignature", func(t *testing.T) {
		store := newStore(t)
		t.Cleanup(func() { store.Close(context.Background()) })
		ctx := context.Background()

		const n = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
			dups    int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				owner := alice
				if i%2 == 1 {
					owner = bob
				}
				_, err := store.Create(ctx, owner, "race", SalesSignature, nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success++
				case errors.Is(err, registry.ErrDuplicateSignature):
					dups++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if success != 1 || dups != n-1 {
			t.Errorf("expected 1 success and %d duplicates, got %d and %d", n-1, success, dups)
		}
		if c, _ := store.Count(ctx); c != 1 {
			t.Errorf("Count = %d, want 1", c)
		}
	})

	t.Run("Properties", func(t *testing.T) {
		CheckProperties(t, newStore)
	})
}
