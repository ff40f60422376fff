// Package dune is a minimal client for the Dune Analytics CSV table
// upload endpoint.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.dune.com"
	DefaultTimeout = 30 * time.Second

	uploadPath = "/api/v1/table/upload/csv"
)

// Sink errors.
var (
	// ErrAuth is returned for a missing or rejected API key.
	ErrAuth = errors.New("dune auth error")

	// ErrUpload is returned when the upload call fails or the sink
	// reports failure.
	ErrUpload = errors.New("dune upload failed")
)

// UploadRequest is one CSV upload with its fixed metadata.
type UploadRequest struct {
	TableName   string `json:"table_name"`
	Description string `json:"description"`
	Data        string `json:"data"`
	IsPrivate   bool   `json:"is_private"`
}

// UploadResult is the normalized sink response. Confirmed is true when
// the sink's response shape was recognized as a success; an unrecognized
// 2xx response is a weak success with Confirmed false.
type UploadResult struct {
	TableName string
	Confirmed bool
}

// Client calls the Dune table upload API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Dune client. A missing API key fails here, before
// any network call, rather than as an opaque auth failure downstream.
func NewClient(apiKey string, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is empty", ErrAuth)
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UploadCSV performs exactly one upload. The call is not idempotent
// from the sink's perspective; callers must not repeat it within a run.
//
// The sink answers in one of three shapes: a bare boolean, an object
// carrying a table identifier, or something else entirely. The shapes
// are normalized here, at the integration boundary, into UploadResult.
func (c *Client) UploadCSV(ctx context.Context, req UploadRequest) (UploadResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: marshal request: %v", ErrUpload, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(body))
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: create request: %v", ErrUpload, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-DUNE-API-KEY", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: read response: %v", ErrUpload, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return UploadResult{}, fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, respBody)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return UploadResult{}, fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, respBody)
	}

	return c.normalizeResponse(req.TableName, respBody)
}

// normalizeResponse maps the sink's heterogeneous 2xx response shapes
// to the two-case result.
func (c *Client) normalizeResponse(requested string, body []byte) (UploadResult, error) {
	var flag bool
	if err := json.Unmarshal(body, &flag); err == nil {
		if !flag {
			return UploadResult{}, fmt.Errorf("%w: sink returned false", ErrUpload)
		}
		return UploadResult{TableName: requested, Confirmed: true}, nil
	}

	var obj struct {
		Success   *bool  `json:"success"`
		TableName string `json:"table_name"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.Success != nil && !*obj.Success {
			return UploadResult{}, fmt.Errorf("%w: sink reported failure: %s", ErrUpload, body)
		}
		if obj.TableName != "" {
			return UploadResult{TableName: obj.TableName, Confirmed: true}, nil
		}
		if obj.Success != nil {
			return UploadResult{TableName: requested, Confirmed: true}, nil
		}
	}

	// Success status but unrecognized payload: treat as a weak success.
	c.logger.Warn("upload succeeded but response shape was not recognized",
		zap.ByteString("body", body))
	return UploadResult{}, nil
}
