// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"net/http"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/core/schema"
)

// registryErrors maps registry errors to HTTP status and error type.
var registryErrors = []struct {
	err     error
	status  int
	errType string
}{
	{registry.ErrInvalidSignatureLength, http.StatusBadRequest, "invalid_signature_length"},
	{registry.ErrDuplicateSignature, http.StatusConflict, "duplicate_signature"},
	{registry.ErrInvalidID, http.StatusBadRequest, "invalid_id"},
	{registry.ErrIDNotFound, http.StatusNotFound, "id_not_found"},
	{registry.ErrSignatureNotFound, http.StatusNotFound, "signature_not_found"},
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, schema.ErrorResponse{
		Error: schema.ErrorBody{
			Type:    errType,
			Message: message,
		},
	})
}

// writeRegistryError maps err to a response. Unknown errors are logged and
// reported as internal errors.
func (h *Handler) writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range registryErrors {
		if errors.Is(err, e.err) {
			h.writeError(w, e.status, e.errType, e.err.Error())
			return
		}
	}
	h.requestLogger(r).Error("Registry operation failed", "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
