package cell

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// config содержит неэкспортируемую конфигурацию ячейки.
type config[T any] struct {
	name           string
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	middlewares    []Middleware[T]
}

// Option определяет тип для функциональных опций, которые изменяют конфигурацию ячейки.
type Option[T any] func(*config[T])

// WithName задает имя ячейки для логов и метрик.
// По умолчанию используется имя запроса.
func WithName[T any](name string) Option[T] {
	return func(c *config[T]) {
		c.name = name
	}
}

// WithLogger возвращает опцию, которая устанавливает логгер ячейки.
// Логгер получает диагностику Failure по умолчанию и записи logging middleware.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *config[T]) {
		c.logger = logger
	}
}

// WithTracerProvider возвращает опцию, которая устанавливает провайдер трассировки.
func WithTracerProvider[T any](provider trace.TracerProvider) Option[T] {
	return func(c *config[T]) {
		c.tracerProvider = provider
	}
}

// WithMeterProvider возвращает опцию, которая устанавливает провайдер метрик.
func WithMeterProvider[T any](provider metric.MeterProvider) Option[T] {
	return func(c *config[T]) {
		c.meterProvider = provider
	}
}

// WithMiddleware возвращает опцию, которая добавляет один или несколько middleware
// вокруг движка запросов. Middleware выполняются в порядке добавления.
func WithMiddleware[T any](mw ...Middleware[T]) Option[T] {
	return func(c *config[T]) {
		c.middlewares = append(c.middlewares, mw...)
	}
}
