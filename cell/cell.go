package cell

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Cell - скомпилированная ячейка: запрос, разрешенное определение и движок.
// Создается один раз и безопасно используется из нескольких горутин.
type Cell[T any] struct {
	name    string
	query   Query
	def     *Resolved[T]
	engine  Engine[T]
	logger  *slog.Logger
	renders metric.Int64Counter
}

// New создает ячейку для запроса q.
// Ошибки конфигурации (нет Success, нет движка) возвращаются сразу, а не при отрисовке.
func New[T any](engine Engine[T], q Query, def Definition[T], opts ...Option[T]) (*Cell[T], error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	resolved, err := Resolve(def)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать ячейку для запроса '%s': %w", queryName(q), err)
	}

	cfg := &config[T]{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = queryName(q)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	meterProvider := cfg.meterProvider
	if meterProvider == nil {
		meterProvider = noop.NewMeterProvider()
	}
	renders, err := meterProvider.Meter(instrumentationName).Int64Counter(
		metricKeyPrefix+"render.count",
		metric.WithDescription("Количество выборов представления по состояниям"),
		metric.WithUnit("{renders}"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счетчик render.count: %w", err)
	}

	// Сначала middleware по умолчанию, затем пользовательские.
	allMiddlewares := []Middleware[T]{
		NewLoggingMiddleware[T](cfg.logger),
		NewMetricsMiddleware[T](cfg.meterProvider),
		NewTracingMiddleware[T](cfg.tracerProvider),
	}
	allMiddlewares = append(allMiddlewares, cfg.middlewares...)

	return &Cell[T]{
		name:    cfg.name,
		query:   q,
		def:     resolved,
		engine:  applyMiddlewares(engine, allMiddlewares...),
		logger:  logger,
		renders: renders,
	}, nil
}

// Name возвращает имя ячейки.
func (c *Cell[T]) Name() string {
	return c.name
}

// Query возвращает описание запроса ячейки.
func (c *Cell[T]) Query() Query {
	return c.query
}

// Definition возвращает разрешенное определение ячейки.
func (c *Cell[T]) Definition() *Resolved[T] {
	return c.def
}

// Mount создает экземпляр ячейки для переменных vars и запускает запрос.
// ConfigureRequest вычисляется здесь один раз на экземпляр.
func (c *Cell[T]) Mount(ctx context.Context, vars Variables) (*Instance[T], error) {
	opts := c.def.configureRequest(RequestOptions{
		Variables: vars,
		Policy:    PolicyCacheFirst,
	})

	sub, err := c.engine.Watch(ctx, c.query, opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось запустить запрос '%s': %w", c.name, err)
	}

	inst := &Instance[T]{
		cell:    c,
		vars:    vars,
		options: opts,
		sub:     sub,
	}
	// До первого снимка экземпляр считается загружающимся.
	inst.current = c.def.dispatch(vars, Snapshot[T]{Loading: true}, inst.evaluate)
	return inst, nil
}

// Render монтирует экземпляр, дожидается завершения запроса и отрисовывает результат.
func (c *Cell[T]) Render(ctx context.Context, w io.Writer, vars Variables) error {
	inst, err := c.Mount(ctx, vars)
	if err != nil {
		return err
	}
	defer inst.Close()

	if _, err := inst.Wait(ctx); err != nil {
		return err
	}
	return inst.Render(ctx, w)
}

// View возвращает единицу отрисовки ячейки для переменных vars.
func (c *Cell[T]) View(vars Variables) Renderable {
	return RenderFunc(func(ctx context.Context, w io.Writer) error {
		return c.Render(ctx, w, vars)
	})
}
