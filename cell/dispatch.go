package cell

// Dispatch выбирает представление для снимка и собирает его свойства.
// Порядок проверок фиксирован: ошибка, загрузка, пустота, данные.
// Функция чистая; паника в пользовательском хуке не перехватывается.
func Dispatch[T any](vars Variables, snap Snapshot[T], def *Resolved[T]) Selection {
	return def.dispatch(vars, snap, def.evaluate)
}

// evaluate декорирует данные и проверяет их на пустоту.
func (r *Resolved[T]) evaluate(raw *T) (*T, bool) {
	data := r.decorate(raw)
	return data, r.isEmpty(data)
}

// dispatch содержит порядок выбора; evaluate может быть мемоизирован вызывающей стороной.
func (r *Resolved[T]) dispatch(vars Variables, snap Snapshot[T], evaluate func(*T) (*T, bool)) Selection {
	if snap.Err != nil {
		props := make(Props, len(vars)+len(snap.Meta)+1)
		props[ErrorKey] = snap.Err
		merge(props, vars, snap.Meta)
		return Selection{State: StateFailure, View: r.failure, Props: props}
	}

	if snap.Loading {
		return Selection{State: StateLoading, View: r.loading, Props: baseProps(vars, snap.Meta)}
	}

	data, empty := evaluate(snap.Data)
	if empty {
		return Selection{State: StateEmpty, View: r.empty, Props: baseProps(vars, snap.Meta)}
	}

	// Поля данных идут первыми, чтобы переменные и метаданные могли их перекрыть.
	props := make(Props, len(vars)+len(snap.Meta))
	spreadInto(props, data)
	merge(props, vars, snap.Meta)
	return Selection{State: StateSuccess, View: r.success, Props: props}
}

func baseProps(vars Variables, meta Metadata) Props {
	props := make(Props, len(vars)+len(meta))
	merge(props, vars, meta)
	return props
}

// merge копирует переменные, затем метаданные. Более поздний источник побеждает.
func merge(dst Props, vars Variables, meta Metadata) {
	for k, v := range vars {
		dst[k] = v
	}
	for k, v := range meta {
		dst[k] = v
	}
}
