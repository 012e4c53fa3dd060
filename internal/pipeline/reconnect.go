package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig configures exponential backoff between pipeline restarts.
type ReconnectConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultReconnectConfig returns 5 retries, 1s doubling to a 30s cap.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ReconnectState tracks restart attempts. CurrentRetries is only touched by
// the goroutine running RunWithReconnect.
type ReconnectState struct {
	CurrentRetries int
	Reconnects     atomic.Uint32
}

// Reset clears the retry counter after the pipeline reached PLAYING.
func (s *ReconnectState) Reset() {
	s.CurrentRetries = 0
}

// SessionFunc runs one pipeline lifetime. It returns nil when the session
// ended normally and an error when it should be restarted.
type SessionFunc func(ctx context.Context) error

// RunWithReconnect runs fn until it returns nil, ctx is cancelled, or the
// retry budget is exhausted.
func RunWithReconnect(ctx context.Context, fn SessionFunc, cfg ReconnectConfig, state *ReconnectState) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state.CurrentRetries++
		state.Reconnects.Add(1)

		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("pipeline: max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := calculateBackoff(state.CurrentRetries, cfg)
		slog.Warn("pipeline: restarting",
			"error", err,
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// calculateBackoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
