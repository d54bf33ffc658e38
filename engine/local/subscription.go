package local

import (
	"context"
	"errors"
	"sync"

	"github.com/x-research-team/dtx-cell/cell"
)

// ErrSubscriptionClosed возвращается Refetch после закрытия подписки.
var ErrSubscriptionClosed = errors.New("local: подписка закрыта")

// subscription хранит состояние одного наблюдаемого запроса.
// Канал updates вмещает один снимок: более новый снимок вытесняет непрочитанный.
type subscription[T any] struct {
	id     string
	engine *Engine[T]
	query  cell.Query
	opts   cell.RequestOptions
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	updates chan cell.Snapshot[T]
	last    *T
	closed  bool
}

func (s *subscription[T]) Updates() <-chan cell.Snapshot[T] {
	return s.updates
}

func (s *subscription[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	close(s.updates)
	return nil
}

// refetch повторяет запрос, сохраняя последние данные в снимке загрузки.
func (s *subscription[T]) refetch() error {
	return s.start(NetworkRefetch)
}

// start публикует снимок загрузки и ставит запрос в очередь пула.
func (s *subscription[T]) start(status NetworkStatus) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSubscriptionClosed
	}
	s.publishLocked(cell.Snapshot[T]{Loading: true, Data: s.last, Meta: s.meta(status)})
	s.mu.Unlock()

	ok := s.engine.pool.submit(&task{
		ctx: s.ctx,
		run: func(ctx context.Context) { s.engine.execute(ctx, s) },
	})
	if !ok {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		return ErrShutdown
	}
	return nil
}

func (s *subscription[T]) publishData(data *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = data
	s.publishLocked(cell.Snapshot[T]{Data: data, Meta: s.meta(NetworkReady)})
}

func (s *subscription[T]) publishError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(cell.Snapshot[T]{Err: err, Data: s.last, Meta: s.meta(NetworkError)})
}

// publishLocked заменяет непрочитанный снимок новым. Вызывается под s.mu.
func (s *subscription[T]) publishLocked(snap cell.Snapshot[T]) {
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func (s *subscription[T]) meta(status NetworkStatus) cell.Metadata {
	return cell.Metadata{
		MetaSubscriptionID: s.id,
		MetaNetworkStatus:  status,
		MetaRefetch:        Refetch(s.refetch),
	}
}
