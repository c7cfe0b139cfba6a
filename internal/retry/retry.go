package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobscout/internal/model"
)

// Policy retries transient failures with exponential backoff and jitter.
type Policy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewPolicy creates a retry policy.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewPolicy(maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Policy {
	return &Policy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Do runs fn, retrying on transient errors. op names the call in logs.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !isRetryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		p.logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p *Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation — never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 and 5xx are transient; any other status is the caller's fault.
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Non-HTTP errors (network, DNS, etc.) — retryable.
	return true
}

// BatchSource is a decorator that retries next-batch calls.
type BatchSource struct {
	inner  model.BatchSource
	policy *Policy
}

// NewBatchSource wraps a BatchSource with retry logic.
func NewBatchSource(inner model.BatchSource, policy *Policy) *BatchSource {
	return &BatchSource{inner: inner, policy: policy}
}

// NextBatch delegates to the wrapped source, retrying transient errors.
func (s *BatchSource) NextBatch(ctx context.Context, req model.BatchRequest) (model.BatchResponse, error) {
	var resp model.BatchResponse
	err := s.policy.Do(ctx, "next_batch", func(ctx context.Context) error {
		var err error
		resp, err = s.inner.NextBatch(ctx, req)
		return err
	})
	return resp, err
}

// JDFetcher is a decorator that retries JD fetches.
type JDFetcher struct {
	inner  model.JDFetcher
	policy *Policy
}

// NewJDFetcher wraps a JDFetcher with retry logic.
func NewJDFetcher(inner model.JDFetcher, policy *Policy) *JDFetcher {
	return &JDFetcher{inner: inner, policy: policy}
}

// FetchJD delegates to the wrapped fetcher, retrying transient errors.
func (f *JDFetcher) FetchJD(ctx context.Context, link string) (model.JD, error) {
	var jd model.JD
	err := f.policy.Do(ctx, "fetch_jd", func(ctx context.Context) error {
		var err error
		jd, err = f.inner.FetchJD(ctx, link)
		return err
	})
	return jd, err
}
