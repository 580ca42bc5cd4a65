package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffKind selects how retry delays grow between attempts
type BackoffKind string

const (
	// BackoffFixed retries after the same base delay every time
	BackoffFixed BackoffKind = "fixed"
	// BackoffExponential doubles the delay after each failed attempt
	BackoffExponential BackoffKind = "exponential"
)

// HandlerFunc executes one attempt of a job. Returning an error schedules a
// retry per the class policy; wrapping the error with backoff.Permanent aborts
// the job immediately without consuming the remaining retry budget.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// TerminalFunc is the one-time side effect executed when a job's retry budget
// is exhausted. It receives the original job payload.
type TerminalFunc func(ctx context.Context, payload json.RawMessage)

// NoOpTerminal is a terminal action with no side effect
func NoOpTerminal() TerminalFunc {
	return func(context.Context, json.RawMessage) {}
}

// Policy is the per-job-class retry, timeout and concurrency configuration
type Policy struct {
	// MaxAttempts is the total number of attempts before the terminal action fires
	MaxAttempts int
	// Backoff selects the delay growth between attempts
	Backoff BackoffKind
	// BaseDelay is the first retry delay
	BaseDelay time.Duration
	// MaxDelay caps exponential delays; ignored for fixed backoff
	MaxDelay time.Duration
	// Timeout bounds a single attempt; 0 means no per-attempt timeout
	Timeout time.Duration
	// Workers bounds per-class concurrency
	Workers int
	// QueueSize bounds the per-class pending queue
	QueueSize int
	// OnExhausted runs exactly once when MaxAttempts is reached; nil means no-op
	OnExhausted TerminalFunc
}

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 5 * time.Second
	defaultWorkers     = 10
	defaultQueueSize   = 1024
)

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Backoff == "" {
		p.Backoff = BackoffFixed
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.Workers <= 0 {
		p.Workers = defaultWorkers
	}
	if p.QueueSize <= 0 {
		p.QueueSize = defaultQueueSize
	}
	if p.OnExhausted == nil {
		p.OnExhausted = NoOpTerminal()
	}
	return p
}

// newBackOff builds the per-job delay source for this policy
func (p Policy) newBackOff() backoff.BackOff {
	if p.Backoff == BackoffExponential {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = p.BaseDelay
		if p.MaxDelay > 0 {
			b.MaxInterval = p.MaxDelay
		}
		// The attempt counter is the only exhaustion mechanism
		b.MaxElapsedTime = 0
		return b
	}
	return backoff.NewConstantBackOff(p.BaseDelay)
}
