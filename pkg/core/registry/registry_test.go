// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/observability/logging"
	"github.com/leseb/fileregistry/pkg/storage/memory"
	"github.com/leseb/fileregistry/pkg/storage/registrytest"
)

func TestValidateSignature(t *testing.T) {
	tests := []struct {
		name string
		sig  string
		ok   bool
	}{
		{"sha256 hex", registrytest.SalesSignature, true},
		{"uppercase hex", strings.ToUpper(registrytest.SalesSignature), true},
		{"non hex of right length", strings.Repeat("z", 64), true},
		{"empty", "", false},
		{"too short", "too short", false},
		{"63 chars", registrytest.SalesSignature[:63], false},
		{"65 chars", registrytest.SalesSignature + "a", false},
		{"too long", "too long" + registrytest.SalesSignature, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.ValidateSignature(tt.sig)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("expected ErrInvalidSignatureLength, got %v", err)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	if err := registry.ValidateID(0); !errors.Is(err, registry.ErrInvalidID) {
		t.Errorf("ValidateID(0) = %v, want ErrInvalidID", err)
	}
	if err := registry.ValidateID(1); err != nil {
		t.Errorf("ValidateID(1) = %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	sig, err := registry.Fingerprint(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	const want = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if sig != want {
		t.Errorf("Fingerprint = %s, want %s", sig, want)
	}
	if err := registry.ValidateSignature(sig); err != nil {
		t.Errorf("fingerprint is not a valid signature: %v", err)
	}

	empty, err := registry.Fingerprint(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Fingerprint(empty): %v", err)
	}
	if len(empty) != registry.SignatureLength {
		t.Errorf("empty fingerprint has length %d", len(empty))
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestFingerprint_ReadError(t *testing.T) {
	if _, err := registry.Fingerprint(errReader{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegistry_MemoryConformance(t *testing.T) {
	registrytest.RunConformanceTests(t, func(t *testing.T) registry.Store {
		return memory.New()
	})
}

// End-to-end registration scenarios.
func TestRegistry_Scenarios(t *testing.T) {
	const (
		owner registry.Identity = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
		other registry.Identity = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	)
	const (
		sig  = registrytest.SalesSignature
		sig2 = registrytest.MarketingSignature
		sig3 = registrytest.ITSignature
	)
	ctx := context.Background()

	t.Run("create a new file", func(t *testing.T) {
		var events []registry.Event
		reg := registry.New(memory.New(), registry.WithNotifier(registry.NotifierFunc(func(_ context.Context, ev registry.Event) error {
			events = append(events, ev)
			return nil
		})))

		if _, err := reg.Create(ctx, owner, "Sales report", sig); err != nil {
			t.Fatalf("Create: %v", err)
		}
		id, err := reg.LookupID(ctx, sig)
		if err != nil || id != 1 {
			t.Fatalf("LookupID = %d, %v; want 1", id, err)
		}
		want := []registry.Event{{ID: 1, Name: "Sales report", Signature: sig}}
		if !slices.Equal(events, want) {
			t.Errorf("events = %+v, want %+v", events, want)
		}
	})

	t.Run("signature must be 64 characters long", func(t *testing.T) {
		reg := registry.New(memory.New())
		for _, bad := range []string{"too short", "too long" + sig} {
			if _, err := reg.Create(ctx, owner, "Sales report", bad); !errors.Is(err, registry.ErrInvalidSignatureLength) {
				t.Errorf("Create(%q): got %v", bad, err)
			}
		}
	})

	t.Run("signature already exists", func(t *testing.T) {
		reg := registry.New(memory.New())
		if _, err := reg.Create(ctx, owner, "Sales report", sig); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := reg.Create(ctx, owner, "Sales report", sig); !errors.Is(err, registry.ErrDuplicateSignature) {
			t.Errorf("second Create: got %v", err)
		}
	})

	t.Run("multiple files from different owners", func(t *testing.T) {
		reg := registry.New(memory.New())
		for _, c := range []struct {
			owner registry.Identity
			name  string
			sig   string
		}{
			{owner, "Sales report", sig},
			{other, "Marketing report", sig2},
			{owner, "IT report", sig3},
		} {
			if _, err := reg.Create(ctx, c.owner, c.name, c.sig); err != nil {
				t.Fatalf("Create(%s): %v", c.name, err)
			}
		}
		ids, _ := reg.ListIDsByOwner(ctx, owner)
		ids2, _ := reg.ListIDsByOwner(ctx, other)
		if !slices.Equal(ids, []uint64{1, 3}) || !slices.Equal(ids2, []uint64{2}) {
			t.Errorf("ids = %v / %v, want [1 3] / [2]", ids, ids2)
		}
		none, _ := reg.ListIDsByOwner(ctx, "0x90F79bf6EB2c4f870365E785982E1f101E93b906")
		if none == nil || len(none) != 0 {
			t.Errorf("expected empty list, got %#v", none)
		}
	})

	t.Run("owner lookups", func(t *testing.T) {
		reg := registry.New(memory.New())
		if _, err := reg.LookupOwner(ctx, 1); !errors.Is(err, registry.ErrIDNotFound) {
			t.Errorf("LookupOwner(1) before create: got %v", err)
		}
		if _, err := reg.Create(ctx, owner, "Sales report", sig); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if got, err := reg.LookupOwner(ctx, 1); err != nil || got != owner {
			t.Errorf("LookupOwner(1) = %q, %v", got, err)
		}
		if got, err := reg.LookupOwnerBySignature(ctx, sig); err != nil || got != owner {
			t.Errorf("LookupOwnerBySignature = %q, %v", got, err)
		}
		if _, err := reg.LookupOwner(ctx, 0); !errors.Is(err, registry.ErrInvalidID) {
			t.Errorf("LookupOwner(0): got %v", err)
		}
	})
}

func TestRegistry_NotifierErrorIsWrapped(t *testing.T) {
	boom := errors.New("sink down")
	reg := registry.New(memory.New(), registry.WithNotifier(registry.NotifierFunc(func(context.Context, registry.Event) error {
		return boom
	})))

	_, err := reg.Create(context.Background(), "alice", "Sales report", registrytest.SalesSignature)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped notifier error, got %v", err)
	}
	if !strings.Contains(err.Error(), "notify file 1") {
		t.Errorf("error should name the file id: %v", err)
	}
	if n, _ := reg.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestRegistry_ConcurrentCreatesNotifyInOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		events []registry.Event
	)
	reg := registry.New(memory.New(), registry.WithNotifier(registry.NotifierFunc(func(_ context.Context, ev registry.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	})))

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := registry.Identity(fmt.Sprintf("owner-%d", i%4))
			if _, err := reg.Create(context.Background(), owner, "f", registrytest.Signature(i+1)); err != nil {
				t.Errorf("Create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(events) != n {
		t.Fatalf("got %d events, want %d", len(events), n)
	}
	for i, ev := range events {
		if ev.ID != uint64(i+1) {
			t.Fatalf("event %d has id %d; notifications out of creation order", i, ev.ID)
		}
	}
}

func TestRegistry_LogsRegistrations(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "info", Format: "text", Output: &buf})
	reg := registry.New(memory.New(), registry.WithLogger(logger))

	if _, err := reg.Create(context.Background(), "alice", "Sales report", registrytest.SalesSignature); err != nil {
		t.Fatalf("Create: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "File registered") || !strings.Contains(out, "id=1") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestEventFor(t *testing.T) {
	rec := &registry.Record{ID: 7, Name: "n", Signature: "s", Owner: "o"}
	if ev := registry.EventFor(rec); ev != (registry.Event{ID: 7, Name: "n", Signature: "s"}) {
		t.Errorf("EventFor = %+v", ev)
	}
}
