package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier определяет интерфейс, который абстрагирует выполнение SQL-запросов.
// Он совместим как с *pgxpool.Pool, так и с pgx.Tx, что позволяет выполнять
// запросы ячеек как в рамках транзакции, так и без нее.
type Querier interface {
	// Query выполняет SQL-запрос и возвращает результат в виде pgx.Rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
