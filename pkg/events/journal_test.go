// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package events_test

import (
	"context"
	"testing"

	"github.com/leseb/fileregistry/pkg/events"
	"github.com/leseb/fileregistry/pkg/events/journaltest"
)

func TestMemoryJournalConformance(t *testing.T) {
	journaltest.RunConformanceTests(t, func(t *testing.T) events.Journal {
		return events.NewMemoryJournal()
	})
}

func TestMemoryJournalRegistered(t *testing.T) {
	j, err := events.Journals.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatalf("Journals.New: %v", err)
	}
	if _, ok := j.(*events.MemoryJournal); !ok {
		t.Errorf("expected *events.MemoryJournal, got %T", j)
	}
}
