// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/leseb/fileregistry/docs"
)

var (
	openAPIJSON []byte
	openAPIErr  error
	openAPIOnce sync.Once
)

// loadOpenAPI converts the embedded YAML document to JSON once.
func loadOpenAPI() ([]byte, error) {
	openAPIOnce.Do(func() {
		var doc any
		if openAPIErr = yaml.Unmarshal(docs.OpenAPISpec, &doc); openAPIErr != nil {
			return
		}
		openAPIJSON, openAPIErr = json.Marshal(doc)
	})
	return openAPIJSON, openAPIErr
}

// handleOpenAPI serves the OpenAPI document as JSON.
func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := loadOpenAPI()
	if err != nil {
		h.requestLogger(r).Error("Failed to load OpenAPI spec", "error", err)
		h.writeError(w, http.StatusInternalServerError, "spec_error", "Failed to load OpenAPI spec")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
