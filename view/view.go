// Package view содержит готовые представления для слотов ячейки.
package view

import (
	"context"
	"fmt"
	"io"
	"text/template"

	"github.com/x-research-team/dtx-cell/cell"
)

// Nothing ничего не выводит.
var Nothing cell.View = cell.Nothing

// Text выводит строку формата, подставляя значения свойств keys по порядку.
func Text(format string, keys ...string) cell.View {
	return func(props cell.Props) cell.Renderable {
		args := make([]any, len(keys))
		for i, key := range keys {
			args[i] = props[key]
		}
		return cell.RenderFunc(func(_ context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, format, args...)
			return err
		})
	}
}

// Error выводит сообщение об ошибке из свойств Failure.
// Формат должен содержать один глагол для текста ошибки.
func Error(format string) cell.View {
	return func(props cell.Props) cell.Renderable {
		msg := ""
		if err := props.Error(); err != nil {
			msg = err.Error()
		}
		return cell.RenderFunc(func(_ context.Context, w io.Writer) error {
			_, err := fmt.Fprintf(w, format, msg)
			return err
		})
	}
}

// Template выполняет текстовый шаблон, передавая ему свойства как данные.
func Template(tmpl *template.Template) cell.View {
	return func(props cell.Props) cell.Renderable {
		return cell.RenderFunc(func(_ context.Context, w io.Writer) error {
			if err := tmpl.Execute(w, props); err != nil {
				return fmt.Errorf("view: не удалось выполнить шаблон '%s': %w", tmpl.Name(), err)
			}
			return nil
		})
	}
}

// MustTemplate разбирает текст шаблона и паникует при ошибке.
// Предназначена для инициализации пакетных переменных.
func MustTemplate(name, text string) cell.View {
	return Template(template.Must(template.New(name).Parse(text)))
}
