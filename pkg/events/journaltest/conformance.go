// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

// Package journaltest provides a shared conformance test suite for
// events.Journal implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package journaltest

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/events"
)

func event(id uint64) registry.Event {
	return registry.Event{
		ID:        id,
		Name:      fmt.Sprintf("report %d", id),
		Signature: fmt.Sprintf("%064x", id),
	}
}

// RunConformanceTests exercises a Journal implementation against the shared
// contract. newJournal is called once per sub-test to provide an isolated,
// empty journal.
func RunConformanceTests(t *testing.T, newJournal func(t *testing.T) events.Journal) {
	t.Helper()

	t.Run("Empty", func(t *testing.T) {
		j := newJournal(t)
		defer j.Close(context.Background())

		got, err := j.Since(context.Background(), 0)
		if err != nil {
			t.Fatalf("Since: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
	})

	t.Run("AppendAndReplay", func(t *testing.T) {
		j := newJournal(t)
		defer j.Close(context.Background())
		ctx := context.Background()

		var want []registry.Event
		for id := uint64(1); id <= 12; id++ {
			ev := event(id)
			if err := j.Append(ctx, ev); err != nil {
				t.Fatalf("Append(%d): %v", id, err)
			}
			want = append(want, ev)
		}

		got, err := j.Since(ctx, 0)
		if err != nil {
			t.Fatalf("Since(0): %v", err)
		}
		if !slices.Equal(got, want) {
			t.Errorf("Since(0) = %+v, want %+v", got, want)
		}
	})

	t.Run("SinceSkipsEarlierIDs", func(t *testing.T) {
		j := newJournal(t)
		defer j.Close(context.Background())
		ctx := context.Background()

		for id := uint64(1); id <= 5; id++ {
			if err := j.Append(ctx, event(id)); err != nil {
				t.Fatalf("Append(%d): %v", id, err)
			}
		}

		tests := []struct {
			after uint64
			want  []uint64
		}{
			{0, []uint64{1, 2, 3, 4, 5}},
			{2, []uint64{3, 4, 5}},
			{4, []uint64{5}},
			{5, []uint64{}},
			{99, []uint64{}},
		}
		for _, tt := range tests {
			got, err := j.Since(ctx, tt.after)
			if err != nil {
				t.Fatalf("Since(%d): %v", tt.after, err)
			}
			ids := make([]uint64, 0, len(got))
			for _, ev := range got {
				ids = append(ids, ev.ID)
			}
			if !slices.Equal(ids, tt.want) {
				t.Errorf("Since(%d) ids = %v, want %v", tt.after, ids, tt.want)
			}
		}
	})

	t.Run("PreservesFields", func(t *testing.T) {
		j := newJournal(t)
		defer j.Close(context.Background())
		ctx := context.Background()

		ev := registry.Event{
			ID:        1,
			Name:      "Sales report \"Q1\"\nfinal",
			Signature: "19ca4f27c55c6912f88cf47d1ef1e0c2f097456a50cb882b9b49e8a244dadb58",
		}
		if err := j.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := j.Since(ctx, 0)
		if err != nil {
			t.Fatalf("Since: %v", err)
		}
		if len(got) != 1 || got[0] != ev {
			t.Errorf("got %+v, want [%+v]", got, ev)
		}
	})
}
