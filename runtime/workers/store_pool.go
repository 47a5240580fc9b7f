package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/errors"
)

var (
	_ contract.BlockingExecutor = (*StorePool)(nil)
	_ contract.Worker           = (*StoreWorker)(nil)
)

type storeJob struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
}

// StorePool is the boundary between connection goroutines and blocking persistence calls.
// Callers hand a function to Do; one of the pool's StoreWorkers runs it with the store timeout.
// The pool does nothing until its workers are started by the supervisor.
type StorePool struct {
	log      *slog.Logger
	jobs     chan storeJob
	stopped  chan struct{}
	stopOnce sync.Once
	timeout  time.Duration
	size     int
}

func NewStorePool(log *slog.Logger, size, bufferSize int, timeout time.Duration) *StorePool {
	return &StorePool{
		log:     log,
		jobs:    make(chan storeJob, bufferSize),
		stopped: make(chan struct{}),
		timeout: timeout,
		size:    size,
	}
}

// Workers returns the units to register on the supervisor.
func (p *StorePool) Workers() []contract.Worker {
	res := make([]contract.Worker, 0, p.size)
	for i := 0; i < p.size; i++ {
		res = append(res, &StoreWorker{log: p.log.With("store_worker", i), jobs: p.jobs, timeout: p.timeout})
	}
	return res
}

// Do runs fn on a pool worker and waits for its result.
// It returns ctx.Err() if the caller gives up before the job is picked up or finished,
// and ErrPoolStopped once the pool was stopped.
func (p *StorePool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-p.stopped:
		return errors.ErrPoolStopped
	default:
	}
	job := storeJob{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		return errors.ErrPoolStopped
	case p.jobs <- job:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		return errors.ErrPoolStopped
	case err := <-job.result:
		return err
	}
}

// Stop refuses new jobs and releases callers still waiting on one.
func (p *StorePool) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
}

func (p *StorePool) Len() int { return len(p.jobs) }
func (p *StorePool) Cap() int { return cap(p.jobs) }

// StoreWorker executes store jobs one at a time.
type StoreWorker struct {
	log     *slog.Logger
	jobs    <-chan storeJob
	timeout time.Duration
}

func (w *StoreWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping store worker")
			return nil
		case job := <-w.jobs:
			if job.ctx.Err() != nil {
				job.result <- job.ctx.Err()
				continue
			}
			job.result <- w.execute(ctx, job)
		}
	}
}

func (w *StoreWorker) execute(ctx context.Context, job storeJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Store job panicked", "panic", r)
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()

	jobCtx, cancel := mergeContext(ctx, job.ctx)
	defer cancel()
	if w.timeout > 0 {
		var cancelTimeout context.CancelFunc
		jobCtx, cancelTimeout = context.WithTimeout(jobCtx, w.timeout)
		defer cancelTimeout()
	}
	return job.fn(jobCtx)
}

// mergeContext derives from the caller's context and is also canceled when the worker stops.
func mergeContext(worker, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(caller)
	stop := context.AfterFunc(worker, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
