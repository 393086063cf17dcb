// Package pipeline implements a bounded work queue drained by a fixed pool
// of workers.
//
// Producers block in Enqueue while the queue is full; nothing is dropped.
// Each worker takes items in FIFO order and hands them to a Processor. A
// failing or panicking Processor is reported through the error hook and the
// worker keeps going.
//
// Shutdown:
//
//	Close() stops new enqueues, cancels the workers' context, and waits up to
//	Config.ShutdownGrace for them to return. Items still queued at that point
//	are discarded. Enqueue returns nil only if its send completed before Close
//	began.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultCapacity      = 10000
	DefaultShutdownGrace = 5 * time.Second
)

// Config sizes the pipeline. Zero values select the defaults.
type Config struct {
	// Capacity is the maximum number of queued items (default 10000).
	Capacity int

	// Workers is the number of concurrent consumers (default 2 x GOMAXPROCS).
	Workers int

	// ShutdownGrace bounds how long Close waits for workers (default 5s).
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Workers <= 0 {
		c.Workers = 2 * runtime.GOMAXPROCS(0)
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	return c
}

// Processor handles one item. ctx is cancelled when the pipeline closes.
type Processor[T any] func(ctx context.Context, item T) error

// ErrorHandler receives the item that failed and the wrapped failure.
type ErrorHandler[T any] func(item T, err *ProcessingError)

// Pipeline is a bounded queue with a fixed worker pool.
//
// Thread Safety: all methods are safe for concurrent use.
type Pipeline[T any] struct {
	cfg     Config
	queue   chan T
	process Processor[T]
	onError ErrorHandler[T]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	processed atomic.Uint64
	failed    atomic.Uint64
}

// New creates a pipeline and starts its workers. onError may be nil.
func New[T any](cfg Config, process Processor[T], onError ErrorHandler[T]) *Pipeline[T] {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pipeline[T]{
		cfg:     cfg,
		queue:   make(chan T, cfg.Capacity),
		process: process,
		onError: onError,
		ctx:     ctx,
		cancel:  cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}
	return p
}

// Enqueue adds item to the queue, blocking while the queue is full.
//
// Returns ErrClosed if the pipeline is (or becomes) closed, or ctx.Err() if
// the caller gives up first. An item that wins a free slot while Close runs
// is reported as ErrClosed; it may or may not reach a worker.
func (p *Pipeline[T]) Enqueue(ctx context.Context, item T) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.send(ctx, item)
}

func (p *Pipeline[T]) send(ctx context.Context, item T) error {
	select {
	case p.queue <- item:
		// Close may have started after the closed check above.
		if p.closed.Load() {
			return ErrClosed
		}
		return nil
	case <-p.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pipeline. It returns ErrShutdownTimeout if the workers
// did not exit within the grace period. Subsequent calls return the same
// result without waiting again.
func (p *Pipeline[T]) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.cancel()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(p.cfg.ShutdownGrace)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			p.closeErr = ErrShutdownTimeout
		}
	})
	return p.closeErr
}

// Len returns the number of queued items.
func (p *Pipeline[T]) Len() int { return len(p.queue) }

// Cap returns the queue capacity.
func (p *Pipeline[T]) Cap() int { return cap(p.queue) }

// Workers returns the worker count.
func (p *Pipeline[T]) Workers() int { return p.cfg.Workers }

// Processed returns the number of items handled without error.
func (p *Pipeline[T]) Processed() uint64 { return p.processed.Load() }

// Failed returns the number of items whose processing failed.
func (p *Pipeline[T]) Failed() uint64 { return p.failed.Load() }

func (p *Pipeline[T]) worker(id int) {
	defer p.wg.Done()

	for {
		// Cancellation wins over a non-empty queue.
		if p.ctx.Err() != nil {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case item := <-p.queue:
			p.run(id, item)
		}
	}
}

func (p *Pipeline[T]) run(id int, item T) {
	err := p.safeProcess(item)
	if err == nil {
		p.processed.Add(1)
		return
	}

	p.failed.Add(1)
	if p.onError != nil {
		p.onError(item, &ProcessingError{Worker: id, Err: err})
	}
}

func (p *Pipeline[T]) safeProcess(item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProcessorPanic, r)
		}
	}()
	return p.process(p.ctx, item)
}
