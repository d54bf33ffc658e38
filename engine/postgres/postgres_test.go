package postgres_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-cell/cell"
	"github.com/x-research-team/dtx-cell/engine/postgres"
)

// fakeRows - минимальная реализация pgx.Rows поверх значений в памяти.
type fakeRows struct {
	columns []string
	data    [][]any
	pos     int
	closed  bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(r.columns))
	for i, name := range r.columns {
		fields[i] = pgconn.FieldDescription{Name: name}
	}
	return fields
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		r.Close()
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) == 1 {
		if scanner, ok := dest[0].(pgx.RowScanner); ok {
			return scanner.ScanRow(r)
		}
	}
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("неверное количество колонок")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

type fakeQuerier struct {
	rows *fakeRows
	err  error
	sql  string
	args []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	q.args = args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestFetch_CollectsRows(t *testing.T) {
	t.Parallel()

	rows := &fakeRows{
		columns: []string{"id", "title"},
		data:    [][]any{{int64(1), "первый"}, {int64(2), "второй"}},
	}
	q := &fakeQuerier{rows: rows}
	stmt := postgres.Statement{Name: "posts", Field: "posts", SQL: "SELECT id, title FROM posts WHERE author = @author"}

	rec, err := postgres.Fetch(q)(context.Background(), stmt, cell.RequestOptions{Variables: cell.Variables{"author": "ann"}})
	require.NoError(t, err)

	assert.Equal(t, stmt.SQL, q.sql)
	require.Len(t, q.args, 1)
	assert.Equal(t, pgx.NamedArgs{"author": "ann"}, q.args[0], "Переменные передаются как именованные аргументы")

	assert.Equal(t, []string{"posts"}, rec.Keys())
	value, ok := rec.Get("posts")
	require.True(t, ok)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "title": "первый"},
		{"id": int64(2), "title": "второй"},
	}, value)
	assert.True(t, rows.closed, "Строки должны быть закрыты после чтения")
}

func TestFetch_NoRowsIsEmpty(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{rows: &fakeRows{columns: []string{"id"}}}
	rec, err := postgres.Fetch(q)(context.Background(), postgres.Statement{SQL: "SELECT 1"}, cell.RequestOptions{})
	require.NoError(t, err)

	_, ok := rec.Get(postgres.DefaultField)
	assert.True(t, ok)
	assert.True(t, cell.DefaultIsEmpty(rec), "Запрос без строк должен давать пустые данные")
}

func TestFetch_Errors(t *testing.T) {
	t.Parallel()

	t.Run("неподдерживаемый запрос", func(t *testing.T) {
		t.Parallel()
		_, err := postgres.Fetch(&fakeQuerier{})(context.Background(), "SELECT 1", cell.RequestOptions{})
		require.ErrorIs(t, err, postgres.ErrUnsupportedQuery)
	})

	t.Run("ошибка выполнения", func(t *testing.T) {
		t.Parallel()
		dbErr := errors.New("connection refused")
		_, err := postgres.Fetch(&fakeQuerier{err: dbErr})(context.Background(), postgres.Statement{Name: "posts"}, cell.RequestOptions{})
		require.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "posts")
	})
}

type account struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func TestFetchStructs(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{rows: &fakeRows{
		columns: []string{"id", "name"},
		data:    [][]any{{int64(7), "ann"}},
	}}

	rec, err := postgres.FetchStructs[account](q)(context.Background(), postgres.Statement{Field: "accounts"}, cell.RequestOptions{})
	require.NoError(t, err)

	value, ok := rec.Get("accounts")
	require.True(t, ok)
	assert.Equal(t, []account{{ID: 7, Name: "ann"}}, value)
}

func TestStatement_QueryName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sql", postgres.Statement{}.QueryName())
	assert.Equal(t, "posts", postgres.Statement{Name: "posts"}.QueryName())
}
