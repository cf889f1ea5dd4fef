// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/events"
	"github.com/leseb/fileregistry/pkg/observability/logging"
)

// EventSource is where the HTTP adapter reads notifications from.
// *events.Dispatcher implements it.
type EventSource interface {
	Journal() events.Journal
	Subscribe(ctx context.Context) <-chan registry.Event
}

// Handler implements the HTTP adapter
type Handler struct {
	registry *registry.Registry
	events   EventSource
	logger   *logging.Logger
	tracer   trace.Tracer
	mux      *http.ServeMux
	handler  http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithTracer records a server span per request.
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) {
		if t != nil {
			h.tracer = t
		}
	}
}

// New creates a new HTTP handler. events may be nil, in which case the
// events endpoints are not served.
func New(reg *registry.Registry, events EventSource, logger *logging.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handler{
		registry: reg,
		events:   events,
		logger:   logger,
		tracer:   noop.NewTracerProvider().Tracer("http"),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /openapi.json", h.handleOpenAPI)

	// Files API
	h.mux.HandleFunc("POST /v1/files", h.handleCreateFile)
	h.mux.HandleFunc("GET /v1/files/{id}", h.handleGetFile)
	h.mux.HandleFunc("GET /v1/files/{id}/owner", h.handleGetFileOwner)

	// Signature lookups
	h.mux.HandleFunc("GET /v1/signatures/{signature}", h.handleLookupSignature)
	h.mux.HandleFunc("GET /v1/signatures/{signature}/owner", h.handleLookupSignatureOwner)

	// Owners API
	h.mux.HandleFunc("GET /v1/owners/{owner}/files", h.handleListOwnerFiles)

	// Events API
	if events != nil {
		h.mux.HandleFunc("GET /v1/events", h.handleListEvents)
		h.mux.HandleFunc("GET /v1/events/stream", h.handleStreamEvents)
	}

	h.handler = requestID(h.traceRequests(h.logRequests(withIdentity(h.mux))))
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.Count(r.Context())
	if err != nil {
		h.requestLogger(r).Error("Health check failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"files":  count,
	})
}

// writeJSON writes v as a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// requestLogger returns the request-scoped logger
func (h *Handler) requestLogger(r *http.Request) *logging.Logger {
	return logging.FromContext(r.Context(), h.logger)
}
