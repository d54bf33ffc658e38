package cell

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instance - один вызов ячейки с конкретными переменными.
// Хранит подписку на запрос, последний выбор и мемоизированные вычисления.
type Instance[T any] struct {
	cell    *Cell[T]
	vars    Variables
	options RequestOptions
	sub     Subscription[T]

	mu      sync.Mutex
	current Selection
	closed  bool

	// memo кеширует декорирование и проверку на пустоту по указателю сырых данных.
	memo struct {
		valid bool
		raw   *T
		data  *T
		empty bool
	}
	lastLogged error
}

// Options возвращает параметры запроса, вычисленные при монтировании.
func (i *Instance[T]) Options() RequestOptions {
	return i.options
}

// Variables возвращает переменные экземпляра.
func (i *Instance[T]) Variables() Variables {
	return i.vars
}

// Current возвращает последний выбор представления.
func (i *Instance[T]) Current() Selection {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Next ожидает следующий снимок от движка и применяет его.
func (i *Instance[T]) Next(ctx context.Context) (Selection, error) {
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return Selection{}, ErrInstanceClosed
	}

	select {
	case <-ctx.Done():
		return Selection{}, ctx.Err()
	case snap, ok := <-i.sub.Updates():
		if !ok {
			if i.isClosed() {
				return Selection{}, ErrInstanceClosed
			}
			return Selection{}, ErrSubscriptionClosed
		}
		return i.Update(snap), nil
	}
}

// Wait получает снимки, пока запрос не завершится, и возвращает итоговый выбор.
func (i *Instance[T]) Wait(ctx context.Context) (Selection, error) {
	for {
		sel, err := i.Next(ctx)
		if err != nil {
			return Selection{}, err
		}
		if sel.State != StateLoading {
			return sel, nil
		}
	}
}

// Update применяет снимок, доставленный средой исполнения, и возвращает выбор.
// Повторный вызов с тем же снимком дает тот же выбор и не пишет лог повторно.
func (i *Instance[T]) Update(snap Snapshot[T]) Selection {
	i.mu.Lock()
	defer i.mu.Unlock()

	sel := i.cell.def.dispatch(i.vars, snap, i.evaluate)
	i.current = sel

	i.cell.renders.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cell.name", i.cell.name),
		attribute.String("state", sel.State.String()),
	))

	if sel.State == StateFailure && i.cell.def.defaultFailure && !sameError(i.lastLogged, snap.Err) {
		i.lastLogged = snap.Err
		i.cell.logger.Error("ошибка запроса",
			slog.String("cell", i.cell.name),
			slog.Any("error", snap.Err),
		)
	}

	return sel
}

// Render отрисовывает последний выбор.
func (i *Instance[T]) Render(ctx context.Context, w io.Writer) error {
	return i.Current().Render(ctx, w)
}

// Close прекращает подписку. Повторный вызов ничего не делает.
func (i *Instance[T]) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()
	return i.sub.Close()
}

func (i *Instance[T]) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// evaluate - мемоизированная версия Resolved.evaluate. Вызывается под i.mu.
func (i *Instance[T]) evaluate(raw *T) (*T, bool) {
	if i.memo.valid && i.memo.raw == raw {
		return i.memo.data, i.memo.empty
	}
	data, empty := i.cell.def.evaluate(raw)
	i.memo.valid = true
	i.memo.raw = raw
	i.memo.data = data
	i.memo.empty = empty
	return data, empty
}

// sameError сравнивает ошибки по идентичности, не паникуя на несравнимых типах.
// Ошибки несравнимых типов считаются одинаковыми при совпадении типа и текста.
func sameError(a, b error) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if !ta.Comparable() {
		return a.Error() == b.Error()
	}
	return a == b
}
