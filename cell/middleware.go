package cell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/dtx-cell/cell"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "cell."
)

// Middleware определяет интерфейс для middleware вокруг движка запросов.
type Middleware[T any] interface {
	Wrap(next Engine[T]) Engine[T]
}

// MiddlewareFunc является адаптером, позволяющим использовать обычные функции как middleware.
type MiddlewareFunc[T any] func(next Engine[T]) Engine[T]

// Wrap реализует интерфейс Middleware.
func (f MiddlewareFunc[T]) Wrap(next Engine[T]) Engine[T] {
	return f(next)
}

// EngineFunc является адаптером, позволяющим использовать обычные функции как Engine.
type EngineFunc[T any] func(ctx context.Context, q Query, opts RequestOptions) (Subscription[T], error)

// Watch реализует интерфейс Engine.
func (f EngineFunc[T]) Watch(ctx context.Context, q Query, opts RequestOptions) (Subscription[T], error) {
	return f(ctx, q, opts)
}

// loggingMiddleware добавляет логирование запуска запросов.
type loggingMiddleware[T any] struct {
	logger *slog.Logger
}

// NewLoggingMiddleware создает новое middleware для логирования.
func NewLoggingMiddleware[T any](logger *slog.Logger) Middleware[T] {
	if logger == nil {
		return noopMiddleware[T]{}
	}
	return &loggingMiddleware[T]{logger: logger}
}

// Wrap оборачивает движок для добавления логирования.
func (m *loggingMiddleware[T]) Wrap(next Engine[T]) Engine[T] {
	return EngineFunc[T](func(ctx context.Context, q Query, opts RequestOptions) (Subscription[T], error) {
		name := queryName(q)
		m.logger.Info("запуск запроса",
			slog.String("query_name", name),
			slog.String("policy", string(opts.Policy)),
		)

		startTime := time.Now()
		sub, err := next.Watch(ctx, q, opts)
		if err != nil {
			m.logger.Error("ошибка запуска запроса",
				slog.String("query_name", name),
				slog.Any("error", err),
				slog.Duration("duration", time.Since(startTime)),
			)
		}
		return sub, err
	})
}

// metricsMiddleware собирает метрики OpenTelemetry по запускам запросов.
type metricsMiddleware[T any] struct {
	watchCounter  metric.Int64Counter
	watchDuration metric.Float64Histogram
}

// NewMetricsMiddleware создает новое middleware для сбора метрик.
func NewMetricsMiddleware[T any](provider metric.MeterProvider) Middleware[T] {
	if provider == nil {
		return noopMiddleware[T]{}
	}

	meter := provider.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	watchCounter, err := meter.Int64Counter(
		metricKeyPrefix+"watch.count",
		metric.WithDescription("Количество запущенных запросов"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать счетчик watch.count: %v", err))
	}

	watchDuration, err := meter.Float64Histogram(
		metricKeyPrefix+"watch.duration",
		metric.WithDescription("Длительность запуска запроса"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic(fmt.Sprintf("не удалось создать гистограмму watch.duration: %v", err))
	}

	return &metricsMiddleware[T]{
		watchCounter:  watchCounter,
		watchDuration: watchDuration,
	}
}

// Wrap оборачивает движок для сбора метрик.
func (m *metricsMiddleware[T]) Wrap(next Engine[T]) Engine[T] {
	return EngineFunc[T](func(ctx context.Context, q Query, opts RequestOptions) (Subscription[T], error) {
		startTime := time.Now()
		sub, err := next.Watch(ctx, q, opts)
		duration := float64(time.Since(startTime).Microseconds()) / 1000

		status := "success"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("query.name", queryName(q)),
			attribute.String("status", status),
		)
		m.watchCounter.Add(ctx, 1, attrs)
		m.watchDuration.Record(ctx, duration, attrs)

		return sub, err
	})
}

// tracingMiddleware создает спан на время жизни подписки.
type tracingMiddleware[T any] struct {
	tracer trace.Tracer
}

// NewTracingMiddleware создает новое middleware для трассировки.
func NewTracingMiddleware[T any](tp trace.TracerProvider) Middleware[T] {
	if tp == nil {
		return noopMiddleware[T]{}
	}
	return &tracingMiddleware[T]{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
	}
}

// Wrap оборачивает движок для добавления трассировки.
func (m *tracingMiddleware[T]) Wrap(next Engine[T]) Engine[T] {
	return EngineFunc[T](func(ctx context.Context, q Query, opts RequestOptions) (Subscription[T], error) {
		name := queryName(q)
		ctx, span := m.tracer.Start(ctx, name+" watch",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("query.name", name),
				attribute.String("query.policy", string(opts.Policy)),
			),
		)

		sub, err := next.Watch(ctx, q, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, err
		}
		return &tracingSubscription[T]{Subscription: sub, span: span}, nil
	})
}

// tracingSubscription завершает спан при закрытии подписки.
type tracingSubscription[T any] struct {
	Subscription[T]
	span trace.Span
	once sync.Once
}

func (s *tracingSubscription[T]) Close() error {
	err := s.Subscription.Close()
	s.once.Do(func() {
		if err != nil {
			s.span.RecordError(err)
		}
		s.span.End()
	})
	return err
}

// noopMiddleware представляет собой пустое middleware.
type noopMiddleware[T any] struct{}

// Wrap просто возвращает следующий движок без изменений.
func (noopMiddleware[T]) Wrap(next Engine[T]) Engine[T] {
	return next
}

// applyMiddlewares применяет цепочку middleware к движку.
// Первый middleware в списке оказывается внешним.
func applyMiddlewares[T any](engine Engine[T], middlewares ...Middleware[T]) Engine[T] {
	e := engine
	for i := len(middlewares) - 1; i >= 0; i-- {
		e = middlewares[i].Wrap(e)
	}
	return e
}

// queryName извлекает имя запроса: из Named или по имени типа.
func queryName(q Query) string {
	if n, ok := q.(Named); ok {
		return n.QueryName()
	}
	val := reflect.ValueOf(q)
	if !val.IsValid() {
		return "query"
	}
	t := val.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return "query"
}
