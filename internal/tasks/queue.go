package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/shared"
	"golang.org/x/time/rate"
)

// Task is a unit of work against the remote service.
type Task func(ctx context.Context) (any, error)

// Result is the outcome of a submitted operation. Err is nil on success.
type Result struct {
	ID          string
	Description string
	Category    Category
	Value       any
	Err         error
	Elapsed     time.Duration
}

// Success reports whether the operation completed without error.
func (r Result) Success() bool {
	return r.Err == nil
}

// Option modifies a single submission.
type Option func(*operation)

// WithPriority places the operation at the front of the pending list.
// It never preempts an operation that is already running.
func WithPriority() Option {
	return func(o *operation) { o.priority = true }
}

// WithCategory overrides the category derived from the description.
func WithCategory(c Category) Option {
	return func(o *operation) {
		o.category = c
		o.categorySet = true
	}
}

type operation struct {
	id          string
	description string
	category    Category
	categorySet bool
	priority    bool
	task        Task
	ctx         context.Context
	result      chan Result
}

// Opts configures a [Queue].
type Opts struct {
	Timeouts  Timeouts
	RateLimit float64 // non-critical operations per second; 0 disables throttling
	Burst     int
	Logger    *log.Logger
	Notify    chan<- Result // receives every finished operation; full channels drop results
}

// Queue serializes remote operations through a single worker.
//
// Non-critical operations run one at a time in submission order, with priority
// operations prepended. Critical operations run immediately in the caller's goroutine.
type Queue struct {
	timeouts Timeouts
	limiter  *rate.Limiter
	logger   *log.Logger
	notify   chan<- Result

	mu      sync.Mutex
	pending []*operation
	closed  bool

	wake chan struct{}
	stop context.CancelFunc
	done chan struct{}
}

// NewQueue creates a queue and starts its worker. Call [Queue.Close] to stop it.
func NewQueue(opts Opts) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		timeouts: opts.Timeouts,
		logger:   shared.WithLogger(opts.Logger, "component", "tasks"),
		notify:   opts.Notify,
		wake:     make(chan struct{}, 1),
		stop:     cancel,
		done:     make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	go q.run(ctx)
	return q
}

// Submit runs task and blocks until its result is available.
//
// Failures, timeouts and panics are reported in [Result.Err]; Submit never panics.
// If ctx ends while the operation is still pending, Submit returns ctx's error and the
// worker skips the operation.
func (q *Queue) Submit(ctx context.Context, description string, task Task, opts ...Option) Result {
	op := &operation{
		id:          shared.GenerateID(),
		description: description,
		task:        task,
		ctx:         ctx,
		result:      make(chan Result, 1),
	}
	for _, opt := range opts {
		opt(op)
	}
	if !op.categorySet {
		op.category = Classify(description)
	}

	if op.category == Critical {
		res := q.execute(op)
		q.finish(res)
		return res
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return op.fail(fmt.Errorf("%w: %s", shared.ErrQueueClosed, description))
	}
	if op.priority {
		q.pending = append([]*operation{op}, q.pending...)
	} else {
		q.pending = append(q.pending, op)
	}
	depth := len(q.pending)
	q.mu.Unlock()

	q.logger.Debug("operation queued", "id", op.id, "description", description, "priority", op.priority, "pending", depth)
	q.signal()

	select {
	case res := <-op.result:
		return res
	case <-ctx.Done():
		return op.fail(ctx.Err())
	}
}

// Do submits fn and converts its value back to T.
func Do[T any](ctx context.Context, q *Queue, description string, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	res := q.Submit(ctx, description, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts...)

	var zero T
	if res.Err != nil {
		return zero, res.Err
	}
	v, ok := res.Value.(T)
	if !ok && res.Value != nil {
		return zero, fmt.Errorf("operation %q returned %T", description, res.Value)
	}
	return v, nil
}

// Pending reports how many operations wait for the worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close fails pending operations with [shared.ErrQueueClosed] and waits for the
// running operation, if any, to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, op := range pending {
		op.result <- op.fail(fmt.Errorf("%w: %s", shared.ErrQueueClosed, op.description))
	}
	q.stop()
	<-q.done
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) next() *operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	op := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return op
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		op := q.next()
		if op == nil {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		if err := op.ctx.Err(); err != nil {
			op.result <- op.fail(err)
			continue
		}

		if q.limiter != nil {
			if err := q.limiter.Wait(op.ctx); err != nil {
				op.result <- op.fail(err)
				continue
			}
		}

		res := q.execute(op)
		q.finish(res)
		op.result <- res
	}
}

// execute races the task against its category timeout.
func (q *Queue) execute(op *operation) Result {
	start := time.Now()
	timeout := q.timeouts.For(op.category)

	ctx, cancel := context.WithTimeout(op.ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %s: %v", shared.ErrOperationPanic, op.description, r)}
			}
		}()
		v, err := op.task(ctx)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	res := Result{ID: op.id, Description: op.description, Category: op.category}
	select {
	case o := <-done:
		res.Value, res.Err = o.value, o.err
	case <-timer.C:
		res.Err = fmt.Errorf("%w: %s after %v", shared.ErrTimeout, op.description, timeout)
	}

	if errors.Is(res.Err, context.DeadlineExceeded) && op.ctx.Err() == nil {
		res.Err = fmt.Errorf("%w: %s after %v", shared.ErrTimeout, op.description, timeout)
	}
	res.Elapsed = time.Since(start)
	return res
}

func (q *Queue) finish(res Result) {
	switch {
	case errors.Is(res.Err, shared.ErrTimeout):
		q.logger.Warn("operation timed out", "id", res.ID, "description", res.Description, "category", res.Category, "elapsed", res.Elapsed)
	case res.Err != nil:
		q.logger.Error("operation failed", "id", res.ID, "description", res.Description, "category", res.Category, "error", res.Err)
	default:
		q.logger.Debug("operation finished", "id", res.ID, "description", res.Description, "category", res.Category, "elapsed", res.Elapsed)
	}

	if q.notify == nil {
		return
	}
	select {
	case q.notify <- res:
	default:
	}
}

func (op *operation) fail(err error) Result {
	return Result{ID: op.id, Description: op.description, Category: op.category, Err: err}
}
