// Package local реализует внутрипроцессный движок запросов для ячеек.
// Запросы выполняются функцией FetchFunc в общем пуле воркеров, а каждая
// подписка получает снимки состояния: загрузка, данные или ошибка.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/x-research-team/dtx-cell/cell"
)

// Ключи метаданных, которые движок добавляет в каждый снимок.
const (
	MetaSubscriptionID = "subscription_id"
	MetaNetworkStatus  = "network_status"
	MetaRefetch        = "refetch"
)

// NetworkStatus описывает сетевое состояние подписки.
type NetworkStatus int

const (
	NetworkLoading NetworkStatus = 1
	NetworkRefetch NetworkStatus = 4
	NetworkReady   NetworkStatus = 7
	NetworkError   NetworkStatus = 8
)

// Refetch повторно выполняет запрос подписки с теми же параметрами.
type Refetch func() error

// ErrShutdown возвращается после остановки движка.
var ErrShutdown = errors.New("local: движок остановлен")

// FetchFunc выполняет запрос. Возврат (nil, nil) означает отсутствие данных.
type FetchFunc[T any] func(ctx context.Context, q cell.Query, opts cell.RequestOptions) (*T, error)

// Engine - внутрипроцессная реализация cell.Engine.
type Engine[T any] struct {
	fetch    FetchFunc[T]
	pool     *workerPool
	logger   *slog.Logger
	shutdown atomic.Bool
}

// New создает движок и запускает его пул воркеров.
func New[T any](fetch FetchFunc[T], opts ...Option) (*Engine[T], error) {
	if fetch == nil {
		return nil, fmt.Errorf("local: функция выполнения запроса не задана")
	}

	cfg := options{
		workers:   4,
		queueSize: 64,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		return nil, fmt.Errorf("local: количество воркеров должно быть положительным, получено %d", cfg.workers)
	}

	pool := newWorkerPool(cfg.workers, cfg.queueSize)
	pool.run()

	return &Engine[T]{
		fetch:  fetch,
		pool:   pool,
		logger: cfg.logger,
	}, nil
}

// Watch выполняет запрос и возвращает подписку на его снимки.
// Первый снимок всегда сообщает о загрузке.
func (e *Engine[T]) Watch(ctx context.Context, q cell.Query, opts cell.RequestOptions) (cell.Subscription[T], error) {
	if e.shutdown.Load() {
		return nil, ErrShutdown
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription[T]{
		id:      uuid.NewString(),
		engine:  e,
		query:   q,
		opts:    opts,
		ctx:     subCtx,
		cancel:  cancel,
		updates: make(chan cell.Snapshot[T], 1),
	}

	if err := sub.start(NetworkLoading); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// Shutdown останавливает пул воркеров. Новые подписки после этого не принимаются.
func (e *Engine[T]) Shutdown(ctx context.Context) error {
	e.shutdown.Store(true)
	return e.pool.stop(ctx)
}

// execute выполняет запрос подписки в воркере и публикует результат.
func (e *Engine[T]) execute(ctx context.Context, sub *subscription[T]) {
	data, err := e.safeFetch(ctx, sub)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		sub.publishError(err)
		return
	}
	sub.publishData(data)
}

// safeFetch превращает панику в FetchFunc в ошибку запроса.
func (e *Engine[T]) safeFetch(ctx context.Context, sub *subscription[T]) (data *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("паника при выполнении запроса",
				slog.String("subscription_id", sub.id),
				slog.Any("panic", r),
			)
			err = fmt.Errorf("local: паника при выполнении запроса: %v", r)
		}
	}()
	return e.fetch(ctx, sub.query, sub.opts)
}
