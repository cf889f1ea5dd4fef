// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry binds content signatures to names and owners.
//
// Every successful registration gets the next id from a dense sequence
// starting at 1. Records are append-only: once created they are never
// updated or removed, and the three indices (by id, by signature, by
// owner) always describe the same set of records.
package registry

import "time"

// SignatureLength is the exact number of characters a signature must have.
const SignatureLength = 64

// Identity is an opaque reference to the caller that owns a record.
type Identity string

// Record represents one registered file.
type Record struct {
	ID        uint64
	Name      string
	Signature string
	Owner     Identity
	CreatedAt time.Time
}

// Event is the notification emitted once per successful registration.
type Event struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// EventFor builds the creation notification for a record.
func EventFor(rec *Record) Event {
	return Event{
		ID:        rec.ID,
		Name:      rec.Name,
		Signature: rec.Signature,
	}
}
