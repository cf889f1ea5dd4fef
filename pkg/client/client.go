// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is a Go client for the file registry HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/leseb/fileregistry/pkg/core/registry"
	"github.com/leseb/fileregistry/pkg/core/schema"
)

// identityHeader must match the server's identity header.
const identityHeader = "X-Owner-Identity"

// APIError is a non-2xx response from the server. It unwraps to the
// matching registry error when there is one, so errors.Is works across
// the wire.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry api: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Unwrap returns the registry sentinel for the error type, if any.
func (e *APIError) Unwrap() error {
	switch e.Type {
	case "invalid_signature_length":
		return registry.ErrInvalidSignatureLength
	case "duplicate_signature":
		return registry.ErrDuplicateSignature
	case "invalid_id":
		return registry.ErrInvalidID
	case "id_not_found":
		return registry.ErrIDNotFound
	case "signature_not_found":
		return registry.ErrSignatureNotFound
	}
	return nil
}

// Client talks to a registry server.
type Client struct {
	baseURL    string
	identity   registry.Identity
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithIdentity sets the caller identity sent on registrations.
func WithIdentity(id registry.Identity) Option {
	return func(c *Client) {
		c.identity = id
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create registers signature under name for the client identity.
func (c *Client) Create(ctx context.Context, name, signature string) (uint64, error) {
	body, err := json.Marshal(schema.CreateFileRequest{Name: name, Signature: signature})
	if err != nil {
		return 0, err
	}
	var out schema.CreateFileResponse
	if err := c.do(ctx, http.MethodPost, "/v1/files", bytes.NewReader(body), &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// LookupID returns the id registered for signature.
func (c *Client) LookupID(ctx context.Context, signature string) (uint64, error) {
	var out schema.FileIDResponse
	if err := c.do(ctx, http.MethodGet, "/v1/signatures/"+url.PathEscape(signature), nil, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// LookupOwner returns the owner of file id.
func (c *Client) LookupOwner(ctx context.Context, id uint64) (registry.Identity, error) {
	var out schema.OwnerResponse
	if err := c.do(ctx, http.MethodGet, "/v1/files/"+strconv.FormatUint(id, 10)+"/owner", nil, &out); err != nil {
		return "", err
	}
	return registry.Identity(out.Owner), nil
}

// LookupOwnerBySignature returns the owner of the file registered with signature.
func (c *Client) LookupOwnerBySignature(ctx context.Context, signature string) (registry.Identity, error) {
	var out schema.OwnerResponse
	if err := c.do(ctx, http.MethodGet, "/v1/signatures/"+url.PathEscape(signature)+"/owner", nil, &out); err != nil {
		return "", err
	}
	return registry.Identity(out.Owner), nil
}

// ListIDsByOwner returns the ids owned by owner in creation order.
func (c *Client) ListIDsByOwner(ctx context.Context, owner registry.Identity) ([]uint64, error) {
	var out schema.OwnerFilesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/owners/"+url.PathEscape(string(owner))+"/files", nil, &out); err != nil {
		return nil, err
	}
	if out.IDs == nil {
		out.IDs = []uint64{}
	}
	return out.IDs, nil
}

// Get returns the registration with the given id.
func (c *Client) Get(ctx context.Context, id uint64) (*schema.File, error) {
	var out schema.File
	if err := c.do(ctx, http.MethodGet, "/v1/files/"+strconv.FormatUint(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events returns the creation events with id greater than after.
func (c *Client) Events(ctx context.Context, after uint64) (*schema.ListEventsResponse, error) {
	var out schema.ListEventsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/events?after="+strconv.FormatUint(after, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity != "" {
		req.Header.Set(identityHeader, string(c.identity))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope schema.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && !errors.Is(err, io.EOF) {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Type = envelope.Error.Type
	apiErr.Message = envelope.Error.Message
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
