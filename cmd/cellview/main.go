// Команда cellview выполняет запрос ячейки и выводит результат HTML-таблицей.
//
// Использование:
//
//	cellview [имя=значение ...]
//
// Аргументы становятся переменными запроса. Значения в формате JSON
// (числа, true/false, массивы) разбираются, остальные передаются строками.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tidwall/gjson"

	"github.com/x-research-team/dtx-cell/cell"
	"github.com/x-research-team/dtx-cell/engine/graphql"
	"github.com/x-research-team/dtx-cell/engine/local"
	"github.com/x-research-team/dtx-cell/engine/postgres"
	"github.com/x-research-team/dtx-cell/internal/config"
	"github.com/x-research-team/dtx-cell/view"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	vars, err := parseVariables(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Query.Timeout)
	defer cancel()

	fetch, query, closeSource, err := source(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	engine, err := local.New(fetch,
		local.WithWorkerPoolConfig(cfg.Engine.Workers, cfg.Engine.QueueSize),
		local.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Shutdown(context.Background()); err != nil {
			logger.Error("ошибка остановки движка", slog.Any("error", err))
		}
	}()

	c, err := cell.New[cell.Record](engine, query, cell.Definition[cell.Record]{
		Success: view.Table(cfg.Query.Field, cfg.Query.Caption),
		Empty:   view.Text("нет данных\n"),
		Failure: view.Error("ошибка запроса: %s\n"),
	}, cell.WithLogger[cell.Record](logger))
	if err != nil {
		return err
	}

	logger.Debug("отрисовка ячейки", slog.String("cell", c.Name()), slog.Any("variables", vars))
	if err := c.Render(ctx, os.Stdout, vars); err != nil {
		return fmt.Errorf("не удалось отрисовать ячейку '%s': %w", c.Name(), err)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

// source подготавливает функцию выполнения запроса для выбранного источника.
func source(ctx context.Context, cfg config.Config) (local.FetchFunc[cell.Record], cell.Query, func(), error) {
	switch cfg.Source {
	case config.SourceGraphQL:
		var opts []graphql.ClientOption
		if cfg.GraphQL.Token != "" {
			opts = append(opts, graphql.WithHeader("Authorization", "Bearer "+cfg.GraphQL.Token))
		}
		client := graphql.NewClient(cfg.GraphQL.Endpoint, opts...)
		op := graphql.Operation{Name: cfg.Query.Name, Document: cfg.Query.Document}
		return client.Fetch(), op, func() {}, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
		}
		stmt := postgres.Statement{Name: cfg.Query.Name, Field: cfg.Query.Field, SQL: cfg.Query.SQL}
		return postgres.Fetch(pool), stmt, pool.Close, nil
	}
}

// parseVariables разбирает аргументы вида имя=значение.
func parseVariables(args []string) (cell.Variables, error) {
	vars := make(cell.Variables, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("аргумент '%s' должен иметь вид имя=значение", arg)
		}
		vars[name] = parseValue(raw)
	}
	return vars, nil
}

func parseValue(raw string) any {
	if !gjson.Valid(raw) {
		return raw
	}
	res := gjson.Parse(raw)
	switch res.Type {
	case gjson.Number:
		if f := res.Float(); f == float64(res.Int()) {
			return res.Int()
		}
		return res.Float()
	case gjson.String:
		return res.String()
	default:
		return res.Value()
	}
}
