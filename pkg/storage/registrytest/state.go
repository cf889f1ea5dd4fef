// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registrytest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/leseb/fileregistry/pkg/core/registry"
)

// State is an observable snapshot of a store, taken through its read API.
type State struct {
	Count       uint64
	Records     map[uint64]registry.Record
	BySignature map[string]uint64
	ByOwner     map[registry.Identity][]uint64
}

// Capture reads the full state of store. Records are read by id; the given
// signatures and owners are probed through the signature and owner indices.
func Capture(t testing.TB, store registry.Store, signatures []string, owners []registry.Identity) State {
	t.Helper()
	ctx := context.Background()

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	st := State{
		Count:       n,
		Records:     make(map[uint64]registry.Record, n),
		BySignature: make(map[string]uint64),
		ByOwner:     make(map[registry.Identity][]uint64),
	}
	for id := uint64(1); id <= n; id++ {
		rec, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		st.Records[id] = *rec
	}
	for _, sig := range signatures {
		id, err := store.IDBySignature(ctx, sig)
		switch {
		case err == nil:
			st.BySignature[sig] = id
		case errors.Is(err, registry.ErrSignatureNotFound):
		default:
			t.Fatalf("IDBySignature(%s): %v", sig, err)
		}
	}
	for _, owner := range owners {
		ids, err := store.IDsByOwner(ctx, owner)
		if err != nil {
			t.Fatalf("IDsByOwner(%s): %v", owner, err)
		}
		st.ByOwner[owner] = ids
	}
	return st
}

// Diff returns a human-readable difference between two snapshots, or ""
// when they describe the same registry. Timestamps compare with
// time.Time.Equal; nil and empty owner lists are the same.
func (s State) Diff(o State) string {
	return cmp.Diff(s, o, cmpopts.EquateEmpty())
}
