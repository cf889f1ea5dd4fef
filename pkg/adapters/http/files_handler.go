// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/core/schema"
)

// maxRequestBody bounds the size of a create request body.
const maxRequestBody = 1 << 20

// handleCreateFile handles POST /v1/files
func (h *Handler) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	owner, ok := IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing_identity", IdentityHeader+" header is required")
		return
	}

	var req schema.CreateFileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	id, err := h.registry.Create(r.Context(), owner, req.Name, req.Signature)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, schema.CreateFileResponse{ID: id})
}

// handleGetFile handles GET /v1/files/{id}
func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	rec, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, fileToSchema(rec))
}

// handleGetFileOwner handles GET /v1/files/{id}/owner
func (h *Handler) handleGetFileOwner(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	owner, err := h.registry.LookupOwner(r.Context(), id)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, schema.OwnerResponse{Owner: string(owner)})
}

// handleLookupSignature handles GET /v1/signatures/{signature}
func (h *Handler) handleLookupSignature(w http.ResponseWriter, r *http.Request) {
	id, err := h.registry.LookupID(r.Context(), r.PathValue("signature"))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, schema.FileIDResponse{ID: id})
}

// handleLookupSignatureOwner handles GET /v1/signatures/{signature}/owner
func (h *Handler) handleLookupSignatureOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.registry.LookupOwnerBySignature(r.Context(), r.PathValue("signature"))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, schema.OwnerResponse{Owner: string(owner)})
}

// handleListOwnerFiles handles GET /v1/owners/{owner}/files
func (h *Handler) handleListOwnerFiles(w http.ResponseWriter, r *http.Request) {
	owner := registry.Identity(r.PathValue("owner"))

	ids, err := h.registry.ListIDsByOwner(r.Context(), owner)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, schema.OwnerFilesResponse{
		Object: "list",
		Owner:  string(owner),
		IDs:    ids,
	})
}

// parseID parses a path id. Anything that is not a positive integer is
// an invalid id.
func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, registry.ErrInvalidID
	}
	return id, registry.ValidateID(id)
}

func fileToSchema(rec *registry.Record) schema.File {
	return schema.File{
		ID:        rec.ID,
		Object:    "file",
		Name:      rec.Name,
		Signature: rec.Signature,
		Owner:     string(rec.Owner),
		CreatedAt: rec.CreatedAt.Unix(),
	}
}
