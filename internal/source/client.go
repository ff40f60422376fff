// Package source fetches the validator-queue feed and materializes it
// as a table.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"validator-queue-etl/internal/domain"
)

// DefaultTimeout is the HTTP client timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// Fetch errors. Both are fatal for the run; there is no retry.
var (
	// ErrTransport is returned when the request cannot complete or the
	// feed answers with a non-success status.
	ErrTransport = errors.New("feed transport error")

	// ErrFormat is returned when the response body is not a JSON array
	// of objects.
	ErrFormat = errors.New("feed format error")
)

// Client fetches the feed with a single GET per call.
type Client struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

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

// NewClient creates a feed client for the given URL.
func NewClient(url string, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs one GET of the feed and decodes the body into a table.
// Every field of every object is kept; the schema is not constrained to
// the cleaned column set.
func (c *Client) Fetch(ctx context.Context) (*domain.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Info("fetching validator queue feed", zap.String("url", c.url))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}

	table, err := decodeTable(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("feed fetched",
		zap.Int("rows", table.Len()),
		zap.Int("columns", len(table.Columns)))
	return table, nil
}

// decodeTable decodes a JSON array of objects, preserving the feed's
// field order as the table's column order. Numbers are kept as
// json.Number so integer values survive the round trip.
func decodeTable(r io.Reader) (*domain.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("%w: expected JSON array, got %v", ErrFormat, tok)
	}

	table := domain.NewTable()
	for dec.More() {
		keys, rec, err := decodeRecord(dec)
		if err != nil {
			return nil, err
		}
		table.Append(keys, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return table, nil
}

// decodeRecord decodes one object, returning its keys in stream order.
func decodeRecord(dec *json.Decoder) ([]string, domain.Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("%w: expected JSON object, got %v", ErrFormat, tok)
	}

	var keys []string
	rec := domain.Record{}
	for dec.More() {
		ktok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		key, ok := ktok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w: expected object key, got %v", ErrFormat, ktok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("%w: value for %q: %v", ErrFormat, key, err)
		}
		keys = append(keys, key)
		rec[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return keys, rec, nil
}

// drainAndClose drains the body so the transport can reuse the connection.
func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
