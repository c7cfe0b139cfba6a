package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobscout/internal/model"
)

// Endpoint groups used for rate limiting.
const (
	groupProfile = "profile"
	groupJD      = "jd"
	groupMatch   = "matching"
	groupResume  = "resume"
	groupJobs    = "jobs"
)

const (
	maxErrorBody    = 4 << 10
	maxArtifactSize = 32 << 20
)

// Limiter paces requests per endpoint group.
type Limiter interface {
	Wait(ctx context.Context, endpoint string) error
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration // per request; the event stream is not bounded by it
	UploadLimit int64         // max resume upload in bytes, zero for no limit
	RenderJD    bool          // ask the JD fetcher to render JavaScript pages
}

// Client talks to the job-search, JD, matching, resume and profile
// backends. It implements every collaborator interface in package model.
type Client struct {
	baseURL     string
	http        *http.Client
	stream      *http.Client
	limiter     Limiter
	uploadLimit int64
	renderJD    bool
	logger      *slog.Logger
}

// NewClient creates a backend client. limiter may be nil.
func NewClient(cfg Config, limiter Limiter, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        &http.Client{Timeout: cfg.Timeout},
		stream:      &http.Client{},
		limiter:     limiter,
		uploadLimit: cfg.UploadLimit,
		renderJD:    cfg.RenderJD,
		logger:      logger,
	}
}

func (c *Client) wait(ctx context.Context, group string) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, group)
}

// postJSON sends body as JSON to path and decodes the JSON reply into out.
func (c *Client) postJSON(ctx context.Context, group, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	resp, err := c.send(ctx, group, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// send performs one rate-limited request. Non-2xx replies are returned as
// *model.HTTPError with the body already consumed.
func (c *Client) send(ctx context.Context, group, method, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.sendWith(ctx, c.http, group, method, path, contentType, body)
}

func (c *Client) sendWith(ctx context.Context, hc *http.Client, group, method, path, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.wait(ctx, group); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp, nil
}

// responseError builds an HTTPError from a failed response, lifting the
// backend's "detail" message when the body carries one.
func responseError(resp *http.Response) *model.HTTPError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	herr := &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &envelope) == nil && len(envelope.Detail) > 0 {
		var msg string
		if json.Unmarshal(envelope.Detail, &msg) == nil {
			herr.Message = msg
		} else {
			herr.Message = string(envelope.Detail)
		}
		return herr
	}
	herr.Message = strings.TrimSpace(string(raw))
	return herr
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
