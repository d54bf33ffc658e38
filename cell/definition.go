package cell

import (
	"fmt"

	"github.com/goccy/go-reflect"
)

// Definition описывает представления и хуки ячейки.
// Обязателен только Success, остальные поля независимо получают значения по умолчанию.
type Definition[T any] struct {
	Success View
	Empty   View
	Loading View
	// Failure получает ошибку запроса в свойстве ErrorKey.
	Failure View

	// IsEmpty решает, нужно ли считать полученные данные пустыми.
	// Вызывается с уже декорированными данными.
	IsEmpty func(data *T) bool

	// Decorate преобразует сырые данные перед проверкой на пустоту и отрисовкой.
	// Должна быть чистой функцией и принимать nil.
	Decorate func(data *T) *T

	// ConfigureRequest переписывает параметры запроса перед его выполнением.
	ConfigureRequest func(opts RequestOptions) RequestOptions

	// PrimaryField задает поле, по которому IsEmpty по умолчанию проверяет пустоту.
	// Для данных-словарей обязателен, если IsEmpty не задан.
	PrimaryField string
}

// Resolved - определение, в котором все необязательные поля заменены значениями
// по умолчанию. Неизменяемо и безопасно для одновременного использования.
type Resolved[T any] struct {
	success          View
	empty            View
	loading          View
	failure          View
	isEmpty          func(*T) bool
	decorate         func(*T) *T
	configureRequest func(RequestOptions) RequestOptions

	// defaultFailure означает, что Failure не задан и ошибка пишется в лог.
	defaultFailure bool
}

// Resolve проверяет определение и подставляет значения по умолчанию.
// Каждое поле берется либо целиком из определения, либо целиком по умолчанию.
func Resolve[T any](def Definition[T]) (*Resolved[T], error) {
	if def.Success == nil {
		return nil, ErrMissingSuccess
	}

	r := &Resolved[T]{
		success:          def.Success,
		empty:            def.Empty,
		loading:          def.Loading,
		failure:          def.Failure,
		isEmpty:          def.IsEmpty,
		decorate:         def.Decorate,
		configureRequest: def.ConfigureRequest,
	}

	if r.empty == nil {
		r.empty = Nothing
	}
	if r.loading == nil {
		r.loading = Nothing
	}
	if r.failure == nil {
		r.failure = Nothing
		r.defaultFailure = true
	}
	if r.decorate == nil {
		r.decorate = identity[T]
	}
	if r.configureRequest == nil {
		r.configureRequest = func(opts RequestOptions) RequestOptions { return opts }
	}
	if r.isEmpty == nil {
		dataType := reflect.TypeOf((*T)(nil)).Elem()
		if dataType.Kind() == reflect.Map && def.PrimaryField == "" {
			return nil, fmt.Errorf("%w: тип данных %s", ErrPrimaryFieldRequired, dataType)
		}
		// evaluate вызывается только для завершившегося запроса, поэтому
		// отсутствующие данные здесь отрисовываются как пустые.
		field := IsEmptyField[T](def.PrimaryField)
		r.isEmpty = func(data *T) bool {
			return data == nil || field(data)
		}
	}

	return r, nil
}

// DefaultIsEmpty - проверка на пустоту по умолчанию: отсутствующие данные
// пустыми не считаются, иначе данные пусты, если их первое поле равно nil
// или является пустой последовательностью.
func DefaultIsEmpty[T any](data *T) bool {
	return IsEmptyField[T]("")(data)
}

// IsEmptyField возвращает проверку на пустоту по указанному полю.
// Пустое имя означает первое объявленное поле.
func IsEmptyField[T any](field string) func(data *T) bool {
	return func(data *T) bool {
		if data == nil {
			return false
		}
		return isBlank(primaryValue(any(data), field))
	}
}

func identity[T any](data *T) *T {
	return data
}
