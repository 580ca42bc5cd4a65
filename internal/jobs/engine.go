package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/domain"
	"github.com/u2u-labs/nft-ingest/internal/logger"
)

// Handle identifies a submitted job and signals its terminal outcome
type Handle struct {
	// ID is the ULID assigned at submission
	ID string
	// Class is the job class the work was submitted under
	Class string

	err  error
	done chan struct{}
}

// Done is closed when the job reaches a terminal outcome: success, permanent
// failure, or retry exhaustion.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the job's final error. It must only be called after Done is
// closed; nil means the job completed successfully.
func (h *Handle) Err() error {
	return h.err
}

type jobClass struct {
	name    string
	policy  Policy
	handler HandlerFunc
	pool    pond.Pool
}

type job struct {
	handle  *Handle
	class   *jobClass
	payload json.RawMessage
	attempt int
	delays  backoff.BackOff
}

// Engine is the job dispatch engine. Each registered class owns a bounded
// worker pool and a retry/backoff/terminal-action policy; submitted jobs are
// retried on failure until the policy's attempt budget runs out.
type Engine struct {
	mu      sync.RWMutex
	classes map[string]*jobClass

	ctx    context.Context
	cancel context.CancelFunc
	clock  adapter.Clock
	closed atomic.Bool
	jobs   sync.WaitGroup

	// lifecycle serializes pool submissions against Close so no task can
	// land on a stopped pool
	lifecycle sync.RWMutex
}

// NewEngine creates a dispatch engine. Register job classes before submitting.
func NewEngine(clock adapter.Clock) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		classes: make(map[string]*jobClass),
		ctx:     ctx,
		cancel:  cancel,
		clock:   clock,
	}
}

// Register binds a handler and policy to a job class name
func (e *Engine) Register(class string, policy Policy, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("nil handler for job class %q", class)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.classes[class]; ok {
		return fmt.Errorf("job class %q already registered", class)
	}

	policy = policy.withDefaults()
	e.classes[class] = &jobClass{
		name:    class,
		policy:  policy,
		handler: handler,
		pool: pond.NewPool(
			policy.Workers,
			pond.WithQueueSize(policy.QueueSize),
		),
	}
	return nil
}

// Submit enqueues work for a job class and returns immediately. The returned
// handle reports the job's terminal outcome. Submission itself only fails for
// engine-level faults: an unknown class or a closed engine.
func (e *Engine) Submit(class string, payload json.RawMessage) (*Handle, error) {
	if e.closed.Load() {
		return nil, domain.ErrEngineClosed
	}

	e.mu.RLock()
	c, ok := e.classes[class]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobClass, class)
	}

	j := &job{
		handle: &Handle{
			ID:    ulid.Make().String(),
			Class: class,
			done:  make(chan struct{}),
		},
		class:   c,
		payload: payload,
		delays:  c.policy.newBackOff(),
	}

	e.jobs.Add(1)
	e.dispatch(j)

	logger.Debug("job submitted",
		zap.String("job_id", j.handle.ID),
		zap.String("class", class))

	return j.handle, nil
}

// Close stops accepting work, cancels pending retries and in-flight attempts,
// and waits for every job to reach a terminal outcome.
func (e *Engine) Close() {
	// Flip the flag under the write lock so no in-flight dispatch can still
	// be submitting when the pools stop
	e.lifecycle.Lock()
	alreadyClosed := !e.closed.CompareAndSwap(false, true)
	e.lifecycle.Unlock()
	if alreadyClosed {
		return
	}

	e.cancel()

	e.mu.RLock()
	for _, c := range e.classes {
		c.pool.StopAndWait()
	}
	e.mu.RUnlock()

	e.jobs.Wait()
}

func (e *Engine) dispatch(j *job) {
	e.lifecycle.RLock()
	defer e.lifecycle.RUnlock()

	if e.closed.Load() {
		e.finish(j, domain.ErrEngineClosed)
		return
	}
	j.class.pool.Submit(func() {
		e.runAttempt(j)
	})
}

// runAttempt executes one attempt and decides between success, retry,
// permanent abort and terminal exhaustion
func (e *Engine) runAttempt(j *job) {
	j.attempt++

	err := e.callHandler(j)
	if err == nil {
		e.finish(j, nil)
		return
	}

	// Permanent domain failures abort without consuming the retry budget
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		logger.Warn("job aborted on permanent error",
			zap.String("job_id", j.handle.ID),
			zap.String("class", j.class.name),
			zap.Int("attempt", j.attempt),
			zap.Error(perm.Err))
		e.finish(j, perm.Err)
		return
	}

	if j.attempt >= j.class.policy.MaxAttempts {
		logger.Warn("job retries exhausted",
			zap.String("job_id", j.handle.ID),
			zap.String("class", j.class.name),
			zap.Int("attempts", j.attempt),
			zap.Error(err))
		j.class.policy.OnExhausted(e.ctx, j.payload)
		e.finish(j, err)
		return
	}

	delay := j.delays.NextBackOff()
	logger.Debug("job attempt failed, retrying",
		zap.String("job_id", j.handle.ID),
		zap.String("class", j.class.name),
		zap.Int("attempt", j.attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	go func() {
		select {
		case <-e.clock.After(delay):
			e.dispatch(j)
		case <-e.ctx.Done():
			e.finish(j, domain.ErrEngineClosed)
		}
	}()
}

// callHandler runs the class handler under the per-attempt timeout. A
// timed-out attempt is abandoned, not aborted: the handler keeps running in
// the background and its eventual result is discarded.
func (e *Engine) callHandler(j *job) error {
	ctx := e.ctx
	if j.class.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.class.policy.Timeout)
		defer cancel()
	}

	resCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- fmt.Errorf("handler panic: %v", r)
			}
		}()
		resCh <- j.class.handler(ctx, j.payload)
	}()

	select {
	case err := <-resCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("attempt timed out: %w", ctx.Err())
	}
}

func (e *Engine) finish(j *job, err error) {
	j.handle.err = err
	close(j.handle.done)
	e.jobs.Done()
}
