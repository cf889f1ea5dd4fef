// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

// Package events delivers registry creation notifications.
//
// A Journal is the durable, append-only record of notifications; it can be
// replayed from any id. A Broker fans notifications out to live
// subscribers. The Dispatcher ties both to the registry as its Notifier.
package events

import (
	"context"
	"slices"
	"sync"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/provider"
)

// Journals is the registry of Journal backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/fileregistry/pkg/events/filesystem"
//	import _ "github.com/leseb/fileregistry/pkg/events/s3"
var Journals = provider.NewRegistry[Journal]("event_journal")

func init() {
	Journals.Register("memory", func(_ context.Context, _ map[string]string) (Journal, error) {
		return NewMemoryJournal(), nil
	})
}

// Journal is an append-only log of creation notifications.
type Journal interface {
	// Append adds ev to the end of the journal.
	Append(ctx context.Context, ev registry.Event) error
	// Since returns, in append order, every event whose id is greater than
	// afterID. It never returns a nil slice.
	Since(ctx context.Context, afterID uint64) ([]registry.Event, error)
	Close(ctx context.Context) error
}

// compile-time check
var _ Journal = (*MemoryJournal)(nil)

// MemoryJournal keeps the journal in process memory.
type MemoryJournal struct {
	mu     sync.RWMutex
	events []registry.Event
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append adds ev to the journal.
func (j *MemoryJournal) Append(_ context.Context, ev registry.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return nil
}

// Since returns the events after afterID.
func (j *MemoryJournal) Since(_ context.Context, afterID uint64) ([]registry.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	// Ids are appended in increasing order, so binary search finds the start.
	i, _ := slices.BinarySearchFunc(j.events, afterID+1, func(ev registry.Event, id uint64) int {
		switch {
		case ev.ID < id:
			return -1
		case ev.ID > id:
			return 1
		}
		return 0
	})
	out := make([]registry.Event, len(j.events)-i)
	copy(out, j.events[i:])
	return out, nil
}

// Close is a no-op.
func (j *MemoryJournal) Close(_ context.Context) error {
	return nil
}
