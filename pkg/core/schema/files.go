// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// CreateFileRequest registers a file signature
type CreateFileRequest struct {
	Name      string `json:"name"`      // Display name, free text
	Signature string `json:"signature"` // Exactly 64 characters, usually hex SHA-256
}

// CreateFileResponse carries the id assigned to a new registration
type CreateFileResponse struct {
	ID uint64 `json:"id"`
}

// File represents a registered file
type File struct {
	ID        uint64 `json:"id"`
	Object    string `json:"object" enums:"file"` // Always "file"
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"created_at"` // Unix timestamp
}

// FileIDResponse is returned by signature lookups
type FileIDResponse struct {
	ID uint64 `json:"id"`
}

// OwnerResponse is returned by owner lookups
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// OwnerFilesResponse lists the ids owned by an identity in creation order
type OwnerFilesResponse struct {
	Object string   `json:"object"` // Always "list"
	Owner  string   `json:"owner"`
	IDs    []uint64 `json:"ids"` // Never null
}

// Event is a creation notification
type Event struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// ListEventsResponse is a journal replay
type ListEventsResponse struct {
	Object string  `json:"object"` // Always "list"
	Data   []Event `json:"data"`
	LastID uint64  `json:"last_id"` // Id of the last event, or the requested cursor when empty
}

// ErrorResponse is the error envelope of every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
