// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/leseb/fileregistry/pkg/observability/logging"
)

// Notifier receives the creation notification of every registration.
// Notify is called while the registration is still uncommitted; an error
// aborts it.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Publisher is implemented by notifiers that also announce registrations
// once they are committed. Publish is never called for a registration that
// failed, and it is called in id order.
type Publisher interface {
	Publish(ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f(ctx, ev).
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Registry is the file registry service. Registrations are serialized;
// lookups run concurrently against the store.
type Registry struct {
	store    Store
	notifier Notifier
	logger   *logging.Logger
	tracer   trace.Tracer

	// mu serializes Create so that id allocation and notification order
	// always agree.
	mu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier sets the creation notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer records a span for every operation.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New creates a registry over store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: logging.Discard(),
		tracer: noop.NewTracerProvider().Tracer("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers signature for owner and returns the assigned id.
func (r *Registry) Create(ctx context.Context, owner Identity, name, signature string) (id uint64, err error) {
	ctx, span := r.startSpan(ctx, "registry.create",
		attribute.String(attrSignature, signature),
		attribute.String(attrOwner, string(owner)))
	defer func() { endSpan(span, err) }()

	if err := ValidateSignature(signature); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.Create(ctx, owner, name, signature, r.notify)
	if err != nil {
		r.logger.Debug("Registration rejected", "owner", owner, "signature", signature, "error", err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64(attrID, int64(rec.ID)))

	if p, ok := r.notifier.(Publisher); ok {
		p.Publish(EventFor(rec))
	}

	r.logger.Info("File registered",
		"id", rec.ID,
		"name", rec.Name,
		"signature", rec.Signature,
		"owner", rec.Owner)
	return rec.ID, nil
}

func (r *Registry) notify(ctx context.Context, rec *Record) error {
	if r.notifier == nil {
		return nil
	}
	if err := r.notifier.Notify(ctx, EventFor(rec)); err != nil {
		return fmt.Errorf("notify file %d: %w", rec.ID, err)
	}
	return nil
}

// LookupID returns the id registered for signature.
func (r *Registry) LookupID(ctx context.Context, signature string) (id uint64, err error) {
	ctx, span := r.startSpan(ctx, "registry.lookup_id", attribute.String(attrSignature, signature))
	defer func() { endSpan(span, err) }()

	if err := ValidateSignature(signature); err != nil {
		return 0, err
	}
	return r.store.IDBySignature(ctx, signature)
}

// LookupOwner returns the owner of the record with the given id.
func (r *Registry) LookupOwner(ctx context.Context, id uint64) (owner Identity, err error) {
	ctx, span := r.startSpan(ctx, "registry.lookup_owner", attribute.Int64(attrID, int64(id)))
	defer func() { endSpan(span, err) }()

	rec, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.Owner, nil
}

// LookupOwnerBySignature returns the owner of the record registered for
// signature.
func (r *Registry) LookupOwnerBySignature(ctx context.Context, signature string) (owner Identity, err error) {
	ctx, span := r.startSpan(ctx, "registry.lookup_owner_by_signature", attribute.String(attrSignature, signature))
	defer func() { endSpan(span, err) }()

	if err := ValidateSignature(signature); err != nil {
		return "", err
	}
	return r.store.OwnerBySignature(ctx, signature)
}

// ListIDsByOwner returns the ids owned by owner in creation order. Unknown
// owners get an empty, non-nil slice.
func (r *Registry) ListIDsByOwner(ctx context.Context, owner Identity) (ids []uint64, err error) {
	ctx, span := r.startSpan(ctx, "registry.list_ids_by_owner", attribute.String(attrOwner, string(owner)))
	defer func() { endSpan(span, err) }()

	ids, err = r.store.IDsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

// Get returns the full record with the given id.
func (r *Registry) Get(ctx context.Context, id uint64) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return r.store.Get(ctx, id)
}

// Count returns the number of registered files.
func (r *Registry) Count(ctx context.Context) (uint64, error) {
	return r.store.Count(ctx)
}

// Span attribute keys.
const (
	attrID        = "file.id"
	attrSignature = "file.signature"
	attrOwner     = "file.owner"
)

func (r *Registry) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
