// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"slices"

	"golang.org/x/crypto/sha3"
)

// Fingerprint algorithms. Each produces a 32-byte digest, so every
// fingerprint is a valid signature.
const (
	AlgSHA256    = "sha256"
	AlgSHA3_256  = "sha3-256"
	AlgKeccak256 = "keccak256"
)

var hashes = map[string]func() hash.Hash{
	AlgSHA256:    sha256.New,
	AlgSHA3_256:  func() hash.Hash { return sha3.New256() },
	AlgKeccak256: func() hash.Hash { return sha3.NewLegacyKeccak256() },
}

// Algorithms returns the supported fingerprint algorithms, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(hashes))
	for name := range hashes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateSignature checks the signature shape. Only the length is
// enforced; the content is not required to be hex.
func ValidateSignature(signature string) error {
	if len(signature) != SignatureLength {
		return ErrInvalidSignatureLength
	}
	return nil
}

// ValidateID rejects id 0. Whether a non-zero id exists is up to the store.
func ValidateID(id uint64) error {
	if id == 0 {
		return ErrInvalidID
	}
	return nil
}

// Fingerprint returns the lowercase hex SHA-256 of everything read from r.
func Fingerprint(r io.Reader) (string, error) {
	return FingerprintWith(r, AlgSHA256)
}

// FingerprintWith hashes everything read from r with the named algorithm
// and returns the lowercase hex digest.
func FingerprintWith(r io.Reader, alg string) (string, error) {
	newHash, ok := hashes[alg]
	if !ok {
		return "", fmt.Errorf("fingerprint: unknown algorithm %q (available: %v)", alg, Algorithms())
	}
	h := newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
