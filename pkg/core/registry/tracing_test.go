// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/storage/memory"
	"github.com/leseb/fileregistry/pkg/storage/registrytest"
)

func TestRegistry_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx := context.Background()
	reg := registry.New(memory.New(), registry.WithTracer(tp.Tracer("test")))

	if _, err := reg.Create(ctx, "alice", "Sales report", registrytest.SalesSignature); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Create(ctx, "bob", "copy", registrytest.SalesSignature); !errors.Is(err, registry.ErrDuplicateSignature) {
		t.Fatalf("duplicate Create: %v", err)
	}
	if _, err := reg.LookupOwner(ctx, 1); err != nil {
		t.Fatalf("LookupOwner: %v", err)
	}

	spans := recorder.Ended()
	var names []string
	for _, s := range spans {
		names = append(names, s.Name())
	}
	want := []string{"registry.create", "registry.create", "registry.lookup_owner"}
	if len(names) != len(want) {
		t.Fatalf("spans = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("span %d = %s, want %s", i, names[i], want[i])
		}
	}

	if spans[0].Status().Code == codes.Error {
		t.Error("successful create should not be marked as an error")
	}
	var hasID bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "file.id" && kv.Value.AsInt64() == 1 {
			hasID = true
		}
	}
	if !hasID {
		t.Errorf("create span attributes = %v, want file.id=1", spans[0].Attributes())
	}

	if spans[1].Status().Code != codes.Error {
		t.Error("rejected create should be marked as an error")
	}
	if len(spans[1].Events()) == 0 {
		t.Error("rejected create should record the error")
	}
}
