package view_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/x-research-team/dtx-cell/cell"
	"github.com/x-research-team/dtx-cell/view"
)

type account struct {
	ID      int64  `db:"id"`
	Name    string `json:"name"`
	private string
}

func TestTable_Maps(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"title": "<b>первый</b>", "id": int64(1)},
		{"title": "второй", "id": int64(2)},
	}
	out := render(t, view.Table("rows", "Посты"), cell.Props{"rows": rows})

	assert.Equal(t,
		`<table><caption>Посты</caption>`+
			`<thead><tr><th>id</th><th>title</th></tr></thead>`+
			`<tbody><tr><td>1</td><td>&lt;b&gt;первый&lt;/b&gt;</td></tr>`+
			`<tr><td>2</td><td>второй</td></tr></tbody></table>`,
		out, "Колонки словарей сортируются, значения экранируются")
}

func TestTable_StructsWithColumns(t *testing.T) {
	t.Parallel()

	rows := []account{{ID: 7, Name: "ann", private: "x"}}
	out := render(t, view.Table("accounts", "",
		view.Column{Title: "Имя", Key: "name"},
		view.Column{Title: "№", Key: "id"},
		view.Column{Title: "Нет", Key: "missing"},
	), cell.Props{"accounts": rows})

	assert.Equal(t,
		`<table><thead><tr><th>Имя</th><th>№</th><th>Нет</th></tr></thead>`+
			`<tbody><tr><td>ann</td><td>7</td><td></td></tr></tbody></table>`,
		out)
}

func TestTable_StructColumnsFromFields(t *testing.T) {
	t.Parallel()

	out := render(t, view.Table("accounts", ""), cell.Props{"accounts": []*account{{ID: 1, Name: "bob"}}})
	assert.Contains(t, out, `<th>ID</th><th>Name</th></tr>`)
	assert.NotContains(t, out, "private")
	assert.Contains(t, out, `<td>1</td><td>bob</td>`)
}

func TestTable_Records(t *testing.T) {
	t.Parallel()

	rows := []any{
		cell.NewRecord(cell.Field{Name: "z", Value: 1}, cell.Field{Name: "a", Value: 2}),
	}
	out := render(t, view.Table("items", ""), cell.Props{"items": rows})
	assert.Contains(t, out, `<th>z</th><th>a</th>`, "Порядок колонок записи сохраняется")
}

func TestTable_NotASlice(t *testing.T) {
	t.Parallel()

	err := view.Table("rows", "")(cell.Props{"rows": 5}).Render(context.Background(), io.Discard)
	assert.Error(t, err)
}
