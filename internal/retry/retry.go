// Package retry implements the retry-with-backoff wrapper used
// throughout the ingestion pipeline to absorb transient store and
// network errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Config parameterizes a retry wrapper instance. Zero values are
// replaced with sane defaults by New.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Classifier  Classifier
}

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Retrier wraps operations with exponential backoff and a transient
// error classifier.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	classifier  Classifier
	logger      *slog.Logger
}

// New constructs a Retrier, applying sane defaults for any zero field
// in cfg.
func New(cfg Config, logger *slog.Logger) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultClassifier
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Retrier{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		classifier:  cfg.Classifier,
		logger:      logger,
	}
}

// delay computes the backoff for attempt n (1-indexed, after a
// failure): min(base*2^(n-1), max) plus uniform jitter in
// [0, min(base/2, 500ms)).
func (r *Retrier) delay(n int) time.Duration {
	backoff := r.baseDelay * time.Duration(1<<uint(n-1))
	if backoff > r.maxDelay || backoff <= 0 {
		backoff = r.maxDelay
	}

	jitterCap := r.baseDelay / 2
	if jitterCap > 500*time.Millisecond {
		jitterCap = 500 * time.Millisecond
	}
	if jitterCap <= 0 {
		return backoff
	}

	return backoff + time.Duration(rand.Int63n(int64(jitterCap)))
}

// Do runs op, retrying transient failures (per the Retrier's
// classifier) with exponential backoff up to maxAttempts. label
// identifies the operation in exhaustion/recovery logs. If ctx is
// cancelled during a backoff sleep, Do stops at once and returns an
// error wrapping ctx.Err().
func (r *Retrier) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry: operation recovered", "op", label, "attempt", attempt)
			}

			return nil
		}

		lastErr = err

		if !r.classifier(err) {
			return err
		}

		if attempt == r.maxAttempts {
			r.logger.Error("retry: attempts exhausted", "op", label, "attempts", attempt, "error", err)
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry: %s: %w", label, ctx.Err())
		case <-time.After(r.delay(attempt)):
		}
	}

	return fmt.Errorf("retry: %s: %w: %v", label, ErrExhausted, lastErr)
}

// ErrExhausted is a sentinel wrappable error callers can check for
// with errors.Is once a retried operation has exhausted all attempts,
// distinct from the underlying transient error that caused exhaustion.
var ErrExhausted = errors.New("retry: attempts exhausted")
