// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import "errors"

var (
	// ErrInvalidSignatureLength is returned when a signature is not exactly
	// SignatureLength characters long.
	ErrInvalidSignatureLength = errors.New("signature must be 64 characters long")

	// ErrDuplicateSignature is returned when registering a signature that is
	// already registered.
	ErrDuplicateSignature = errors.New("signature already exists")

	// ErrInvalidID is returned for id 0, which is never assigned.
	ErrInvalidID = errors.New("invalid file id")

	// ErrIDNotFound is returned for a well-formed id that was never assigned.
	ErrIDNotFound = errors.New("there is no file with that id")

	// ErrSignatureNotFound is returned for a well-formed signature that is
	// not registered.
	ErrSignatureNotFound = errors.New("there is no file with that signature")
)
