// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/events"
)

func init() {
	events.Journals.Register("filesystem", func(_ context.Context, params map[string]string) (events.Journal, error) {
		return New(params["dir"])
	})
}

// compile-time check
var _ events.Journal = (*Journal)(nil)

// journalFile is the name of the journal inside its directory.
const journalFile = "events.jsonl"

// Journal is an events.Journal backed by a JSON-lines file.
//
// Layout:
//
//	<dir>/events.jsonl holds one JSON-encoded event per line, in append order
//
// Every append is fsynced before it returns.
type Journal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// New opens the journal in dir, creating dir and the journal file if they
// do not exist.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, fmt.Errorf("filesystem journal: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, journalFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{path: path, f: f}, nil
}

// Append writes ev as one line and syncs the file.
func (j *Journal) Append(_ context.Context, ev registry.Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return errors.New("filesystem journal: closed")
	}
	if _, err := j.f.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Since scans the journal file for events after afterID.
func (j *Journal) Since(_ context.Context, afterID uint64) ([]registry.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	out := []registry.Event{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev registry.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// Close closes the journal file.
func (j *Journal) Close(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}
