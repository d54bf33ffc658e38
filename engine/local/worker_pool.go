package local

import (
	"context"
	"sync"
)

// task представляет собой атомарную задачу для асинхронного выполнения запроса.
type task struct {
	ctx context.Context
	run func(ctx context.Context)
}

// workerPool - это пул горутин, выполняющих запросы всех подписок движка.
type workerPool struct {
	workers  int
	tasks    chan *task
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// newWorkerPool создает новый пул воркеров.
func newWorkerPool(workers, queueSize int) *workerPool {
	return &workerPool{
		workers: workers,
		tasks:   make(chan *task, queueSize),
		stopCh:  make(chan struct{}),
	}
}

// run запускает воркеров пула.
func (p *workerPool) run() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop останавливает всех воркеров и дожидается их завершения.
func (p *workerPool) stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit ставит задачу в очередь. Возвращает false, если пул остановлен
// или контекст задачи отменен раньше, чем в очереди появилось место.
func (p *workerPool) submit(t *task) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}

	select {
	case p.tasks <- t:
		return true
	case <-p.stopCh:
		return false
	case <-t.ctx.Done():
		return false
	}
}

// worker - это основная функция горутины-воркера.
func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			if t.ctx.Err() != nil {
				continue
			}
			t.run(t.ctx)
		case <-p.stopCh:
			return
		}
	}
}
