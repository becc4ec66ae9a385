package sketch

import (
	"context"
	"errors"
	"sync"

	"github.com/digitalsp/ai-rakugaki-app/internal/logs"
)

// ErrQueueFull — очередь генерации переполнена, клиенту стоит повторить позже.
var ErrQueueFull = errors.New("generation queue full")

type task struct {
	requestID string
	deviceID  string
}

// Pool serializes generation work behind a fixed number of workers. The
// collaborator is typically a single-GPU resource, so the default is one
// worker; the bounded backlog acts as an admission limit.
type Pool struct {
	tasks   chan task
	run     func(ctx context.Context, requestID, deviceID string)
	workers int
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewPool(workers, backlog int, run func(ctx context.Context, requestID, deviceID string)) *Pool {
	if workers < 1 {
		workers = 1
	}
	if backlog < 1 {
		backlog = 1
	}
	return &Pool{
		tasks:   make(chan task, backlog),
		run:     run,
		workers: workers,
	}
}

// Start запускает воркеры; ctx отменяет текущие вызовы генератора.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	workers := p.workers
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				p.run(ctx, t.requestID, t.deviceID)
			}
		}()
	}
}

// Enqueue ставит задачу без блокировки; при переполнении — ErrQueueFull.
func (p *Pool) Enqueue(requestID, deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrQueueFull
	}
	select {
	case p.tasks <- task{requestID: requestID, deviceID: deviceID}:
		return nil
	default:
		logs.Logger.WithField("request_id", requestID).Warn("generation backlog full, rejecting task")
		return ErrQueueFull
	}
}

// Stop закрывает очередь и дожидается завершения начатых задач.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
