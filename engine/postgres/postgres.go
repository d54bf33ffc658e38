// Package postgres позволяет использовать SQL-запросы PostgreSQL как запросы ячеек.
// Функции Fetch и FetchStructs подключаются к движку engine/local.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/x-research-team/dtx-cell/cell"
	"github.com/x-research-team/dtx-cell/engine/local"
)

// DefaultField - имя поля записи, в которое попадают строки, если Statement.Field пуст.
const DefaultField = "rows"

// ErrUnsupportedQuery возвращается, если описание запроса не является Statement.
var ErrUnsupportedQuery = errors.New("postgres: описание запроса должно иметь тип Statement")

// Statement описывает SQL-запрос ячейки.
// Переменные ячейки подставляются в SQL как именованные аргументы (@name).
type Statement struct {
	Name  string
	Field string
	SQL   string
}

// QueryName реализует cell.Named.
func (s Statement) QueryName() string {
	if s.Name != "" {
		return s.Name
	}
	return "sql"
}

func (s Statement) field() string {
	if s.Field != "" {
		return s.Field
	}
	return DefaultField
}

// Fetch возвращает функцию выполнения запроса, которая собирает строки в
// запись с единственным полем Statement.Field. Каждая строка - map[string]any.
func Fetch(q Querier) local.FetchFunc[cell.Record] {
	return func(ctx context.Context, query cell.Query, opts cell.RequestOptions) (*cell.Record, error) {
		stmt, ok := query.(Statement)
		if !ok {
			return nil, fmt.Errorf("%w: получен %T", ErrUnsupportedQuery, query)
		}

		rows, err := q.Query(ctx, stmt.SQL, pgx.NamedArgs(opts.Variables))
		if err != nil {
			return nil, fmt.Errorf("не удалось выполнить запрос '%s': %w", stmt.QueryName(), err)
		}

		items, err := pgx.CollectRows(rows, pgx.RowToMap)
		if err != nil {
			return nil, fmt.Errorf("не удалось прочитать строки запроса '%s': %w", stmt.QueryName(), err)
		}

		return cell.NewRecord(cell.Field{Name: stmt.field(), Value: items}), nil
	}
}

// FetchStructs работает как Fetch, но сканирует строки в структуры E по именам колонок.
func FetchStructs[E any](q Querier) local.FetchFunc[cell.Record] {
	return func(ctx context.Context, query cell.Query, opts cell.RequestOptions) (*cell.Record, error) {
		stmt, ok := query.(Statement)
		if !ok {
			return nil, fmt.Errorf("%w: получен %T", ErrUnsupportedQuery, query)
		}

		rows, err := q.Query(ctx, stmt.SQL, pgx.NamedArgs(opts.Variables))
		if err != nil {
			return nil, fmt.Errorf("не удалось выполнить запрос '%s': %w", stmt.QueryName(), err)
		}

		items, err := pgx.CollectRows(rows, pgx.RowToStructByName[E])
		if err != nil {
			return nil, fmt.Errorf("не удалось прочитать строки запроса '%s': %w", stmt.QueryName(), err)
		}

		return cell.NewRecord(cell.Field{Name: stmt.field(), Value: items}), nil
	}
}
