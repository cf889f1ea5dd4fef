// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"

	"github.com/leseb/fileregistry/pkg/provider"
)

// Providers is the registry of Store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/fileregistry/pkg/storage/memory"
//	import _ "github.com/leseb/fileregistry/pkg/storage/sqlite"
//	import _ "github.com/leseb/fileregistry/pkg/storage/postgres"
var Providers = provider.NewRegistry[Store]("registry_store")

// CommitHook runs inside a store's Create after the record has been built
// and its id allocated, but before the record becomes visible. Returning an
// error aborts the registration and leaves the store unchanged. Once the
// hook has returned nil, cancelling ctx must not abort the registration.
type CommitHook func(ctx context.Context, rec *Record) error

// Store holds registry state. Implementations must apply Create atomically
// and must return the sentinel errors of this package (possibly wrapped).
//
// Signature lengths and id 0 are validated by Registry before a Store is
// called, but stores validate them again so they can be used on their own.
type Store interface {
	// Create registers signature under the next id and returns the new record.
	// hook may be nil.
	Create(ctx context.Context, owner Identity, name, signature string, hook CommitHook) (*Record, error)
	// Get returns the record with the given id.
	Get(ctx context.Context, id uint64) (*Record, error)
	// IDBySignature returns the id registered for signature.
	IDBySignature(ctx context.Context, signature string) (uint64, error)
	// OwnerBySignature returns the owner of the record registered for signature.
	OwnerBySignature(ctx context.Context, signature string) (Identity, error)
	// IDsByOwner returns the ids owned by owner in creation order. It never
	// returns a nil slice.
	IDsByOwner(ctx context.Context, owner Identity) ([]uint64, error)
	// Count returns the number of records, which is also the last assigned id.
	Count(ctx context.Context) (uint64, error)
	Close(ctx context.Context) error
}
