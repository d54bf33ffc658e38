package cell

import (
	"fmt"
	"sort"
	"sync"
)

// Registry - это потокобезопасный реестр ячеек.
// Он гарантирует, что для каждого имени существует только одна скомпилированная ячейка.
type Registry struct {
	cells map[string]any
	mu    sync.RWMutex
}

// NewRegistry создает новый экземпляр реестра ячеек.
func NewRegistry() *Registry {
	return &Registry{
		cells: make(map[string]any),
	}
}

// Define возвращает ячейку с указанным именем.
// Если ячейка уже существует, она будет возвращена, а переданное определение проигнорировано.
// В противном случае ячейка будет создана, сохранена в реестре и возвращена.
func Define[T any](r *Registry, name string, engine Engine[T], q Query, def Definition[T], opts ...Option[T]) (*Cell[T], error) {
	r.mu.RLock()
	existing, exists := r.cells[name]
	r.mu.RUnlock()

	if exists {
		return typed[T](name, existing)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Повторная проверка на случай, если ячейка была создана во время ожидания блокировки.
	if existing, exists := r.cells[name]; exists {
		return typed[T](name, existing)
	}

	opts = append([]Option[T]{WithName[T](name)}, opts...)
	c, err := New(engine, q, def, opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать ячейку '%s': %w", name, err)
	}
	r.cells[name] = c

	return c, nil
}

// Lookup возвращает ранее определенную ячейку.
func Lookup[T any](r *Registry, name string) (*Cell[T], error) {
	r.mu.RLock()
	existing, exists := r.cells[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}
	return typed[T](name, existing)
}

// Names возвращает отсортированные имена зарегистрированных ячеек.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.cells))
	for name := range r.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typed[T any](name string, c any) (*Cell[T], error) {
	if typedCell, ok := c.(*Cell[T]); ok {
		return typedCell, nil
	}
	return nil, fmt.Errorf("ячейка '%s' уже существует с другим типом данных", name)
}
