// Package cell реализует декларативную обертку над одним удаленным запросом.
// Ячейка (Cell) связывает запрос с набором представлений, привязанных к
// состояниям жизненного цикла запроса (ожидание, ошибка, пусто, данные), и
// сама выбирает нужное представление по текущему снимку состояния запроса.
//
// Пакет не знает, как выполняются запросы и как рисуются представления:
// выполнение делегируется реализации Engine, отрисовка - Renderable.
package cell

import (
	"context"
	"errors"
	"io"
)

// Variables - параметры запроса, переданные вызывающей стороной.
type Variables map[string]any

// Metadata - вспомогательные поля снимка (например, функция повторного запроса).
type Metadata map[string]any

// Props - итоговый набор свойств, передаваемый представлению.
type Props map[string]any

// ErrorKey - ключ, под которым ошибка запроса передается представлению Failure.
const ErrorKey = "error"

// Error возвращает ошибку запроса, если она присутствует в свойствах.
func (p Props) Error() error {
	err, _ := p[ErrorKey].(error)
	return err
}

// Renderable - единица отрисовки, которую умеет выводить среда исполнения.
type Renderable interface {
	Render(ctx context.Context, w io.Writer) error
}

// RenderFunc является адаптером, позволяющим использовать обычные функции как Renderable.
type RenderFunc func(ctx context.Context, w io.Writer) error

// Render реализует интерфейс Renderable.
func (f RenderFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// View строит единицу отрисовки из собранных свойств.
type View func(props Props) Renderable

// Nothing - представление, которое ничего не выводит.
// Используется по умолчанию для слотов Empty, Loading и Failure.
func Nothing(Props) Renderable {
	return noRender{}
}

type noRender struct{}

func (noRender) Render(context.Context, io.Writer) error { return nil }

// Query - непрозрачное описание запроса. Ячейка передает его движку как есть.
// Если значение реализует Named, его имя используется в логах и метриках.
type Query interface{}

// Named позволяет описанию запроса сообщить свое имя.
type Named interface {
	QueryName() string
}

// FetchPolicy задает политику выполнения запроса для движка.
type FetchPolicy string

const (
	PolicyCacheFirst      FetchPolicy = "cache-first"
	PolicyNetworkOnly     FetchPolicy = "network-only"
	PolicyCacheAndNetwork FetchPolicy = "cache-and-network"
	PolicyNoCache         FetchPolicy = "no-cache"
)

// RequestOptions - параметры, с которыми движок выполняет запрос.
type RequestOptions struct {
	Variables Variables
	Policy    FetchPolicy
	// Flags содержит специфичные для движка флаги.
	Flags map[string]any
}

// Snapshot - состояние запроса на момент доставки.
// Data == nil означает, что данных нет.
type Snapshot[T any] struct {
	Err     error
	Loading bool
	Data    *T
	Meta    Metadata
}

// Settled сообщает, что запрос завершился ошибкой или перестал загружаться.
func (s Snapshot[T]) Settled() bool {
	return s.Err != nil || !s.Loading
}

// Subscription - поток снимков одного выполняемого запроса.
type Subscription[T any] interface {
	// Updates возвращает канал снимков. Канал закрывается после Close.
	Updates() <-chan Snapshot[T]

	// Close прекращает подписку и отменяет выполняющийся запрос.
	Close() error
}

// Engine определяет контракт внешнего движка запросов.
type Engine[T any] interface {
	// Watch выполняет запрос и возвращает подписку на его состояния.
	Watch(ctx context.Context, q Query, opts RequestOptions) (Subscription[T], error)
}

// State - состояние, по которому выбрано представление.
type State int

const (
	StateFailure State = iota + 1
	StateLoading
	StateEmpty
	StateSuccess
)

func (s State) String() string {
	switch s {
	case StateFailure:
		return "failure"
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Selection - результат диспетчеризации: выбранное представление и его свойства.
type Selection struct {
	State State
	View  View
	Props Props
}

// Render отрисовывает выбранное представление.
func (s Selection) Render(ctx context.Context, w io.Writer) error {
	if s.View == nil {
		return nil
	}
	r := s.View(s.Props)
	if r == nil {
		return nil
	}
	return r.Render(ctx, w)
}

var (
	// ErrMissingSuccess возвращается, если в определении не задан слот Success.
	ErrMissingSuccess = errors.New("cell: представление Success обязательно")
	// ErrNilEngine возвращается, если движок запросов не передан.
	ErrNilEngine = errors.New("cell: движок запросов не задан")
	// ErrPrimaryFieldRequired возвращается для данных-словарей без явного PrimaryField.
	ErrPrimaryFieldRequired = errors.New("cell: для данных типа map необходимо указать PrimaryField")
	// ErrInstanceClosed возвращается при обращении к закрытому экземпляру.
	ErrInstanceClosed = errors.New("cell: экземпляр закрыт")
	// ErrSubscriptionClosed возвращается, если движок закрыл поток снимков.
	ErrSubscriptionClosed = errors.New("cell: подписка закрыта движком")
	// ErrNotFound возвращается реестром для неизвестного имени ячейки.
	ErrNotFound = errors.New("cell: ячейка не найдена")
)
