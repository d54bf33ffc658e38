package cell

import (
	"strings"

	"github.com/goccy/go-reflect"
)

// DataKey - ключ, под которым в свойства попадают данные, не являющиеся
// объектом (срез, скаляр).
const DataKey = "data"

// primaryValue возвращает значение поля, по которому проверяется пустота.
// Если primary пусто, берется первое объявленное поле.
func primaryValue(data any, primary string) any {
	if r, ok := data.(*Record); ok {
		if r == nil {
			return nil
		}
		if primary != "" {
			v, _ := r.Get(primary)
			return v
		}
		f, _ := r.First()
		return f.Value
	}

	v, ok := indirect(reflect.ValueOf(data))
	if !ok {
		return nil
	}

	switch v.Kind() {
	case reflect.Struct:
		if primary != "" {
			f, ok := structField(v, primary)
			if !ok {
				return nil
			}
			return f.Interface()
		}
		// Первое поле выбирается так же, как поля раскладываются в свойства.
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" {
				continue
			}
			if _, skip := propName(sf); skip {
				continue
			}
			return v.Field(i).Interface()
		}
		return nil
	case reflect.Map:
		if primary != "" {
			if v.Type().Key().Kind() != reflect.String {
				return nil
			}
			mv := v.MapIndex(reflect.ValueOf(primary).Convert(v.Type().Key()))
			if !mv.IsValid() {
				return nil
			}
			return mv.Interface()
		}
		// Порядок ключей словаря не определен: без PrimaryField
		// однозначен только словарь из одного поля.
		switch v.Len() {
		case 0:
			return nil
		case 1:
			iter := v.MapRange()
			iter.Next()
			return iter.Value().Interface()
		default:
			return v.Interface()
		}
	default:
		return v.Interface()
	}
}

// isBlank сообщает, что значение отсутствует или является пустой последовательностью.
func isBlank(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		return v.IsNil()
	case reflect.Slice:
		return v.IsNil() || v.Len() == 0
	case reflect.Array:
		return v.Len() == 0
	default:
		return false
	}
}

// spreadInto раскладывает поля данных в свойства.
func spreadInto(dst Props, data any) {
	if r, ok := data.(*Record); ok {
		r.Range(func(name string, value any) bool {
			dst[name] = value
			return true
		})
		return
	}

	v, ok := indirect(reflect.ValueOf(data))
	if !ok {
		return
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" {
				continue
			}
			name, skip := propName(sf)
			if skip {
				continue
			}
			dst[name] = v.Field(i).Interface()
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			dst[DataKey] = v.Interface()
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			dst[iter.Key().String()] = iter.Value().Interface()
		}
	default:
		dst[DataKey] = v.Interface()
	}
}

// indirect снимает указатели и интерфейсы. Возвращает false для nil.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

// structField ищет поле по имени или по имени из тега json.
func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		if sf.Name == name {
			return v.Field(i), true
		}
		if tagged, skip := propName(sf); !skip && tagged == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// propName возвращает имя свойства для поля структуры с учетом тега json.
func propName(sf reflect.StructField) (name string, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if name, _, _ = strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return sf.Name, false
}
