package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"doorsync/internal/record"
)

const (
	diagnosticsPath   = "/api/v1/diagnostics"
	accessRecordsPath = "/api/v1/access-records"
	healthPath        = "/api/v1/health"

	maxErrorBody = 1024
)

// ClientConfig holds the parameters for NewClient.
type ClientConfig struct {
	// BaseURL of the remote system, e.g. "https://api.example.com".
	BaseURL string

	// Timeout per HTTP request.  Defaults to 15s.
	Timeout time.Duration

	// MaxTries bounds attempts per operation, including the first.
	// Transient failures (transport errors, 5xx) are retried with
	// exponential backoff up to this many tries; 4xx are never retried.
	// Defaults to 3.
	MaxTries uint

	Logger *log.Logger
}

// Client implements Gateway over JSON/HTTP.
type Client struct {
	baseURL  string
	httpc    *http.Client
	maxTries uint
	logger   *log.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		httpc:    &http.Client{Timeout: timeout},
		maxTries: maxTries,
		logger:   logger,
	}
}

// Ping checks remote reachability.  Used by the connectivity probe; a single
// attempt, no retries.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// ── Diagnostics ──────────────────────────────────────────────────────────────

func (c *Client) CreateDiagnostic(ctx context.Context, rec record.Diagnostic) (CreateResult, error) {
	var out CreateResult
	err := c.do(ctx, http.MethodPost, diagnosticsPath, rec, &out)
	return out, err
}

func (c *Client) GetDiagnostic(ctx context.Context, id string) (record.Diagnostic, error) {
	var out record.Diagnostic
	err := c.do(ctx, http.MethodGet, diagnosticsPath+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateDiagnostic(ctx context.Context, rec record.Diagnostic) error {
	return c.do(ctx, http.MethodPut, diagnosticsPath+"/"+url.PathEscape(rec.ID), rec, nil)
}

func (c *Client) DeleteDiagnostic(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, diagnosticsPath+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListUnsyncedDiagnostics(ctx context.Context) ([]record.Diagnostic, error) {
	var out []record.Diagnostic
	err := c.do(ctx, http.MethodGet, diagnosticsPath+"?synced=false", nil, &out)
	return out, err
}

// ── Access records ───────────────────────────────────────────────────────────

func (c *Client) CreateAccessRecord(ctx context.Context, rec record.Access) (CreateResult, error) {
	var out CreateResult
	err := c.do(ctx, http.MethodPost, accessRecordsPath, rec, &out)
	return out, err
}

func (c *Client) GetAccessRecord(ctx context.Context, id string) (record.Access, error) {
	var out record.Access
	err := c.do(ctx, http.MethodGet, accessRecordsPath+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateAccessRecord(ctx context.Context, rec record.Access) error {
	return c.do(ctx, http.MethodPut, accessRecordsPath+"/"+url.PathEscape(rec.ID), rec, nil)
}

func (c *Client) DeleteAccessRecord(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, accessRecordsPath+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListAccessRecordsByStatus(ctx context.Context, status record.Status) ([]record.Access, error) {
	var out []record.Access
	err := c.do(ctx, http.MethodGet, accessRecordsPath+"?status="+url.QueryEscape(string(status)), nil, &out)
	return out, err
}

func (c *Client) ListUnsyncedAccessRecords(ctx context.Context) ([]record.Access, error) {
	var out []record.Access
	err := c.do(ctx, http.MethodGet, accessRecordsPath+"?synced=false", nil, &out)
	return out, err
}

// ── Transport ────────────────────────────────────────────────────────────────

// do executes one JSON round-trip.  Transport failures and 5xx responses
// are retried with exponential backoff; other non-2xx responses are
// permanent and surface immediately as *StatusError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	attempt := func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, body, out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport failure: retryable.
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(b)),
		}
		if resp.StatusCode >= 500 {
			c.logger.Printf("%s %s: %v (will retry)", method, path, serr)
			return serr
		}
		return backoff.Permanent(serr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
