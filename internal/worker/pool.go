package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrPoolBusy is returned by Submit when both the workers and the queue are
// saturated. Callers must degrade gracefully (the API layer answers 429)
// rather than let the queue grow without bound.
var ErrPoolBusy = errors.New("worker pool queue is full")

// Pool executes reconciliation runs on a fixed number of goroutines fed by a
// bounded queue. Runs are never cancelled mid-flight: on shutdown the workers
// drain what is already queued, they just stop accepting new work.
type Pool struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewPool starts workers goroutines behind a queue of queueSize slots.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	log.Info().Int("workers", workers).Int("queue", queueSize).Msg("worker pool started")
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			// Drain whatever was accepted before shutdown.
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a task without blocking. Returns ErrPoolBusy when the queue
// is full or the pool is shutting down.
func (p *Pool) Submit(task func()) error {
	select {
	case <-p.done:
		return ErrPoolBusy
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolBusy
	}
}

// Shutdown stops accepting work and waits for in-flight and queued runs until
// ctx expires.
func (p *Pool) Shutdown(ctx context.Context) {
	p.once.Do(func() { close(p.done) })

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		log.Warn().Msg("worker pool shutdown timed out with runs still in flight")
	}
}
