// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/core/schema"
)

// handleListEvents handles GET /v1/events?after=N
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	after, ok := h.parseAfter(w, r)
	if !ok {
		return
	}

	evs, err := h.events.Journal().Since(r.Context(), after)
	if err != nil {
		h.requestLogger(r).Error("Failed to read journal", "after", after, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	resp := schema.ListEventsResponse{
		Object: "list",
		Data:   make([]schema.Event, 0, len(evs)),
		LastID: after,
	}
	for _, ev := range evs {
		resp.Data = append(resp.Data, eventToSchema(ev))
		resp.LastID = ev.ID
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handleStreamEvents handles GET /v1/events/stream. With ?after=N the
// journal is replayed from N before live events are sent.
func (h *Handler) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	after, ok := h.parseAfter(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	logger := h.requestLogger(r)

	// Streams outlive the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("Failed to clear write deadline", "error", err)
	}

	// Subscribe before replaying so nothing committed in between is missed.
	live := h.events.Subscribe(ctx)

	var backlog []registry.Event
	if r.URL.Query().Has("after") {
		evs, err := h.events.Journal().Since(ctx, after)
		if err != nil {
			logger.Error("Failed to read journal", "after", after, "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		backlog = evs
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Error("Streaming not supported", "error", err)
		return
	}

	// Live events up to the last replayed id may repeat the backlog; only
	// exact repeats are skipped.
	last := after
	replayed := make(map[registry.Event]struct{}, len(backlog))
	for _, ev := range backlog {
		if err := writeSSE(w, ev); err != nil {
			return
		}
		replayed[ev] = struct{}{}
		last = ev.ID
	}
	rc.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-live:
			if !open {
				return
			}
			if ev.ID <= last {
				if _, seen := replayed[ev]; seen {
					continue
				}
			} else {
				replayed = nil
			}
			if err := writeSSE(w, ev); err != nil {
				logger.Debug("Event stream closed", "error", err)
				return
			}
			rc.Flush()
		}
	}
}

// parseAfter reads the ?after cursor, writing a 400 on failure.
func (h *Handler) parseAfter(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	v := r.URL.Query().Get("after")
	if v == "" {
		return 0, true
	}
	after, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "after must be a non-negative integer")
		return 0, false
	}
	return after, true
}

func writeSSE(w http.ResponseWriter, ev registry.Event) error {
	data, err := json.Marshal(eventToSchema(ev))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: file.created\ndata: %s\n\n", ev.ID, data)
	return err
}

func eventToSchema(ev registry.Event) schema.Event {
	return schema.Event{
		ID:        ev.ID,
		Name:      ev.Name,
		Signature: ev.Signature,
	}
}
