package view

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-reflect"

	"github.com/x-research-team/dtx-cell/cell"
)

// Column описывает колонку таблицы: заголовок и ключ значения в строке.
// Для структур ключ сравнивается с именем поля и тегами json и db.
type Column struct {
	Title string
	Key   string
}

var tableTemplate = template.Must(template.New("table").Parse(
	`<table>{{if .Caption}}<caption>{{.Caption}}</caption>{{end}}` +
		`<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>` +
		`<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>`,
))

type tableData struct {
	Caption string
	Header  []string
	Rows    [][]string
}

// Table выводит HTML-таблицу по срезу из свойства field.
// Строками могут быть словари, структуры или *cell.Record.
// Если колонки не заданы, они берутся из первой строки.
func Table(field, caption string, columns ...Column) cell.View {
	return func(props cell.Props) cell.Renderable {
		return cell.RenderFunc(func(_ context.Context, w io.Writer) error {
			rows, err := rowsOf(props[field])
			if err != nil {
				return fmt.Errorf("view: свойство '%s': %w", field, err)
			}

			cols := columns
			if len(cols) == 0 && len(rows) > 0 {
				cols = columnsOf(rows[0])
			}

			data := tableData{Caption: caption, Header: make([]string, len(cols))}
			for i, c := range cols {
				data.Header[i] = c.Title
			}
			for _, row := range rows {
				line := make([]string, len(cols))
				for i, c := range cols {
					line[i] = format(valueOf(row, c.Key))
				}
				data.Rows = append(data.Rows, line)
			}
			return tableTemplate.Execute(w, data)
		})
	}
}

func rowsOf(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("ожидался срез, получен %T", value)
	}
	rows := make([]any, v.Len())
	for i := range rows {
		rows[i] = v.Index(i).Interface()
	}
	return rows, nil
}

func columnsOf(row any) []Column {
	if rec, ok := row.(*cell.Record); ok {
		keys := rec.Keys()
		cols := make([]Column, len(keys))
		for i, k := range keys {
			cols[i] = Column{Title: k, Key: k}
		}
		return cols
	}

	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	var cols []Column
	switch v.Kind() {
	case reflect.Map:
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			if k.Kind() == reflect.String {
				keys = append(keys, k.String())
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			cols = append(cols, Column{Title: k, Key: k})
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" {
				continue
			}
			cols = append(cols, Column{Title: sf.Name, Key: sf.Name})
		}
	}
	return cols
}

func valueOf(row any, key string) any {
	if rec, ok := row.(*cell.Record); ok {
		v, _ := rec.Get(key)
		return v
	}

	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil
		}
		mv := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil
		}
		return mv.Interface()
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" {
				continue
			}
			if sf.Name == key || tagName(sf.Tag.Get("json")) == key || tagName(sf.Tag.Get("db")) == key {
				return v.Field(i).Interface()
			}
		}
	}
	return nil
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func format(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
