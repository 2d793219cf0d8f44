// Package pool is a bounded worker pool over a mutex and condition variable
// guarded queue.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/horockey/fit/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("pool is shut down")

var _ model.MetricsProvider = &Pool{}

type Task func()

type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	closed  bool
	wg      sync.WaitGroup
	logger  zerolog.Logger
	metrics *metrics
}

// New starts size workers. size below one means one.
func New(name string, size int, logger zerolog.Logger) *Pool {
	p := Pool{
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)
	p.metrics = newMetrics(name, &p)

	size = max(size, 1)
	p.wg.Add(size)
	for range size {
		go p.work()
	}

	return &p
}

func (p *Pool) Metrics() []prometheus.Collector {
	return p.metrics.list()
}

// Submit queues task. It fails once Shutdown was called.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.queue = append(p.queue, task)
	p.metrics.submittedCnt.Inc()
	p.cond.Signal()
	return nil
}

// Shutdown stops accepting tasks, runs everything already queued and waits
// for the workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.panicsCnt.Inc()
			p.logger.
				Error().
				Err(fmt.Errorf("task panicked: %v", r)).
				Send()
		}
	}()

	task()
	p.metrics.doneCnt.Inc()
}
