package local

import "log/slog"

// options содержит неэкспортируемую конфигурацию движка.
type options struct {
	workers   int
	queueSize int
	logger    *slog.Logger
}

// Option определяет тип для функциональных опций движка.
type Option func(*options)

// WithWorkerPoolConfig настраивает количество воркеров и размер очереди запросов.
func WithWorkerPoolConfig(workers, queueSize int) Option {
	return func(o *options) {
		o.workers = workers
		o.queueSize = queueSize
	}
}

// WithLogger устанавливает логгер движка.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
