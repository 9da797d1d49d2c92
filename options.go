package storeadapter

import (
	"log/slog"
)

// Option is the interface for the options of an Adapter.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithParallelism sets the degree of parallelism of LoadCache.
// It is validated when LoadCache is called.
func WithParallelism(p Parallelism) Option {
	return optionFunc(func(o *options) {
		o.parallelism = p
	})
}

// WithLogger sets the logger. The adapter logs its lifecycle at debug level.
func WithLogger(logger *slog.Logger) Option {
	if logger == nil {
		panic("logger must not be nil")
	}
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

type options struct {
	parallelism Parallelism
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		parallelism: DefaultParallelism(),
		logger:      slog.New(slog.DiscardHandler),
	}
}
