// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/observability/logging"
)

// compile-time check
var (
	_ registry.Notifier  = (*Dispatcher)(nil)
	_ registry.Publisher = (*Dispatcher)(nil)
)

// Dispatcher is the registry's Notifier. Notify appends each notification
// to the journal before the registration commits; a journal failure aborts
// it. Publish fans the notification out to live subscribers after the
// commit, so live subscribers never see a registration that was rolled back.
type Dispatcher struct {
	journal Journal
	broker  *Broker[registry.Event]
	logger  *logging.Logger
}

// NewDispatcher creates a dispatcher. logger may be nil.
func NewDispatcher(journal Journal, broker *Broker[registry.Event], logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		journal: journal,
		broker:  broker,
		logger:  logger,
	}
}

// Notify appends ev to the journal.
func (d *Dispatcher) Notify(ctx context.Context, ev registry.Event) error {
	if err := d.journal.Append(ctx, ev); err != nil {
		d.logger.Error("Failed to append event to journal", "id", ev.ID, "error", err)
		return fmt.Errorf("append to journal: %w", err)
	}
	d.logger.Debug("Event journaled", "id", ev.ID, "signature", ev.Signature)
	return nil
}

// Publish sends a committed event to live subscribers.
func (d *Dispatcher) Publish(ev registry.Event) {
	if d.broker != nil {
		d.broker.Publish(ev)
	}
}

// Journal returns the journal events are appended to.
func (d *Dispatcher) Journal() Journal {
	return d.journal
}

// Subscribe returns a live feed of notifications published after the call.
// It returns a closed channel when there is no broker.
func (d *Dispatcher) Subscribe(ctx context.Context) <-chan registry.Event {
	if d.broker == nil {
		ch := make(chan registry.Event)
		close(ch)
		return ch
	}
	return d.broker.Subscribe(ctx)
}
