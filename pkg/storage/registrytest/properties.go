// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registrytest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/leseb/fileregistry/pkg/core/registry"
)

// model is the reference registry the store is compared against.
type model struct {
	records     []registry.Record // index i holds id i+1
	bySignature map[string]uint64
	byOwner     map[registry.Identity][]uint64
}

func newModel() *model {
	return &model{
		bySignature: make(map[string]uint64),
		byOwner:     make(map[registry.Identity][]uint64),
	}
}

func (m *model) create(owner registry.Identity, name, sig string) (uint64, error) {
	if len(sig) != registry.SignatureLength {
		return 0, registry.ErrInvalidSignatureLength
	}
	if _, ok := m.bySignature[sig]; ok {
		return 0, registry.ErrDuplicateSignature
	}
	id := uint64(len(m.records) + 1)
	m.records = append(m.records, registry.Record{ID: id, Name: name, Signature: sig, Owner: owner})
	m.bySignature[sig] = id
	m.byOwner[owner] = append(m.byOwner[owner], id)
	return id, nil
}

// signatureGen draws mostly from a small pool so duplicates are common,
// with the occasional malformed length.
func signatureGen() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Map(rapid.IntRange(1, 8), Signature),
		rapid.Map(rapid.IntRange(0, 130), func(n int) string {
			if n == registry.SignatureLength {
				n++
			}
			return strings.Repeat("a", n)
		}),
	)
}

// CheckProperties runs randomized operation sequences against a fresh store
// and a reference model, checking every result and every invariant.
func CheckProperties(t *testing.T, newStore NewStoreFunc) {
	owners := []registry.Identity{alice, bob, "0x90F79bf6EB2c4f870365E785982E1f101E93b906"}

	rapid.Check(t, func(rt *rapid.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		rec := &recorder{}
		reg := registry.New(store, registry.WithNotifier(rec))
		m := newModel()
		ctx := context.Background()

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			owner := rapid.SampledFrom(owners).Draw(rt, "owner")
			sig := signatureGen().Draw(rt, "signature")

			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0, 1:
				name := rapid.StringMatching(`[A-Za-z0-9 ]{0,16}`).Draw(rt, "name")
				wantID, wantErr := m.create(owner, name, sig)
				gotID, gotErr := reg.Create(ctx, owner, name, sig)
				if !sameErr(gotErr, wantErr) {
					rt.Fatalf("Create(%q): got error %v, want %v", sig, gotErr, wantErr)
				}
				if gotID != wantID {
					rt.Fatalf("Create(%q): got id %d, want %d", sig, gotID, wantID)
				}
			case 2:
				wantID, wantErr := modelLookup(m, sig)
				gotID, gotErr := reg.LookupID(ctx, sig)
				if !sameErr(gotErr, wantErr) || gotID != wantID {
					rt.Fatalf("LookupID(%q) = %d, %v; want %d, %v", sig, gotID, gotErr, wantID, wantErr)
				}
				gotOwner, gotErr := reg.LookupOwnerBySignature(ctx, sig)
				if !sameErr(gotErr, wantErr) {
					rt.Fatalf("LookupOwnerBySignature(%q): got error %v, want %v", sig, gotErr, wantErr)
				}
				if wantErr == nil && gotOwner != m.records[wantID-1].Owner {
					rt.Fatalf("LookupOwnerBySignature(%q) = %q, want %q", sig, gotOwner, m.records[wantID-1].Owner)
				}
			case 3:
				id := rapid.Uint64Range(0, uint64(len(m.records))+2).Draw(rt, "id")
				gotOwner, gotErr := reg.LookupOwner(ctx, id)
				switch {
				case id == 0:
					if !errors.Is(gotErr, registry.ErrInvalidID) {
						rt.Fatalf("LookupOwner(0): got %v", gotErr)
					}
				case id > uint64(len(m.records)):
					if !errors.Is(gotErr, registry.ErrIDNotFound) {
						rt.Fatalf("LookupOwner(%d): got %v", id, gotErr)
					}
				default:
					if gotErr != nil || gotOwner != m.records[id-1].Owner {
						rt.Fatalf("LookupOwner(%d) = %q, %v; want %q", id, gotOwner, gotErr, m.records[id-1].Owner)
					}
				}
			case 4:
				got, err := reg.ListIDsByOwner(ctx, owner)
				if err != nil {
					rt.Fatalf("ListIDsByOwner(%s): %v", owner, err)
				}
				want := m.byOwner[owner]
				if got == nil || !slices.Equal(got, want) {
					rt.Fatalf("ListIDsByOwner(%s) = %#v, want %v", owner, got, want)
				}
			}
		}

		checkInvariants(rt, store, m, owners)

		events := rec.snapshot()
		if len(events) != len(m.records) {
			rt.Fatalf("got %d notifications for %d records", len(events), len(m.records))
		}
		for i, ev := range events {
			r := m.records[i]
			if ev != (registry.Event{ID: r.ID, Name: r.Name, Signature: r.Signature}) {
				rt.Fatalf("notification %d = %+v, want record %+v", i, ev, r)
			}
		}
	})
}

func modelLookup(m *model, sig string) (uint64, error) {
	if len(sig) != registry.SignatureLength {
		return 0, registry.ErrInvalidSignatureLength
	}
	id, ok := m.bySignature[sig]
	if !ok {
		return 0, registry.ErrSignatureNotFound
	}
	return id, nil
}

func checkInvariants(rt *rapid.T, store registry.Store, m *model, owners []registry.Identity) {
	ctx := context.Background()

	n, err := store.Count(ctx)
	if err != nil {
		rt.Fatalf("Count: %v", err)
	}
	if n != uint64(len(m.records)) {
		rt.Fatalf("Count = %d, want %d", n, len(m.records))
	}
	if _, err := store.Get(ctx, n+1); !errors.Is(err, registry.ErrIDNotFound) {
		rt.Fatalf("Get(nextId) = %v, want ErrIDNotFound", err)
	}

	owned := 0
	for _, want := range m.records {
		got, err := store.Get(ctx, want.ID)
		if err != nil {
			rt.Fatalf("Get(%d): %v", want.ID, err)
		}
		if got.ID != want.ID || got.Name != want.Name || got.Signature != want.Signature || got.Owner != want.Owner {
			rt.Fatalf("Get(%d) = %+v, want %+v", want.ID, got, want)
		}
		id, err := store.IDBySignature(ctx, want.Signature)
		if err != nil || id != want.ID {
			rt.Fatalf("IDBySignature(%s) = %d, %v; want %d", want.Signature, id, err, want.ID)
		}
	}
	for _, owner := range owners {
		ids, err := store.IDsByOwner(ctx, owner)
		if err != nil {
			rt.Fatalf("IDsByOwner(%s): %v", owner, err)
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				rt.Fatalf("IDsByOwner(%s) not in creation order: %v", owner, ids)
			}
		}
		for _, id := range ids {
			if m.records[id-1].Owner != owner {
				rt.Fatalf("id %d listed for %s but owned by %s", id, owner, m.records[id-1].Owner)
			}
		}
		owned += len(ids)
	}
	if owned != len(m.records) {
		rt.Fatalf("owner index covers %d ids, want %d", owned, len(m.records))
	}
}

func sameErr(got, want error) bool {
	if want == nil {
		return got == nil
	}
	return errors.Is(got, want)
}
