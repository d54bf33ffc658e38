package cell

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Field - одно именованное поле записи.
type Field struct {
	Name  string
	Value any
}

// Record - результат запроса с сохранением порядка объявления полей.
// Порядок полей определяет, какое поле считается первым при проверке на пустоту.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord создает запись из полей в указанном порядке.
// Повторное имя перезаписывает значение, не меняя позиции поля.
func NewRecord(fields ...Field) *Record {
	r := &Record{values: make(map[string]any, len(fields))}
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// ParseRecord разбирает JSON-объект, сохраняя порядок его ключей.
func ParseRecord(data []byte) (*Record, error) {
	r := &Record{}
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Set устанавливает значение поля, добавляя его в конец, если поле новое.
func (r *Record) Set(name string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

// Get возвращает значение поля и признак его наличия.
func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Keys возвращает имена полей в порядке объявления.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len возвращает количество полей.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// First возвращает первое объявленное поле.
func (r *Record) First() (Field, bool) {
	if r.Len() == 0 {
		return Field{}, false
	}
	name := r.keys[0]
	return Field{Name: name, Value: r.values[name]}, true
}

// Range обходит поля в порядке объявления, пока fn возвращает true.
func (r *Record) Range(fn func(name string, value any) bool) {
	if r == nil {
		return
	}
	for _, name := range r.keys {
		if !fn(name, r.values[name]) {
			return
		}
	}
}

// Clone возвращает поверхностную копию записи.
// Декораторы должны изменять копию, а не исходные данные.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON кодирует запись в JSON-объект с исходным порядком ключей.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, fmt.Errorf("cell: не удалось закодировать поле '%s': %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON разбирает JSON-объект. Вложенные значения декодируются
// в стандартные типы (map[string]any, []any, float64, string, bool).
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("cell: некорректный JSON записи")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("cell: запись должна быть JSON-объектом, получен %s", res.Type)
	}
	r.keys = r.keys[:0]
	r.values = make(map[string]any)
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		var v any
		if err = json.Unmarshal([]byte(value.Raw), &v); err != nil {
			err = fmt.Errorf("cell: не удалось разобрать поле '%s': %w", key.String(), err)
			return false
		}
		r.Set(key.String(), v)
		return true
	})
	return err
}

// String возвращает отформатированное JSON-представление записи.
func (r *Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<record: %v>", err)
	}
	return string(pretty.Pretty(data))
}
