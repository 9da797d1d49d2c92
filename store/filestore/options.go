package filestore

import (
	"io/fs"
	"log/slog"
)

// Option is the interface for the options of the file store.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithFileMode sets the permission bits of the written files.
func WithFileMode(mode fs.FileMode) Option {
	return optionFunc(func(o *options) {
		o.fileMode = mode.Perm()
	})
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	if logger == nil {
		panic("logger must not be nil")
	}
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

type options struct {
	fileMode fs.FileMode
	logger   *slog.Logger
}

func defaultOptions() options {
	return options{
		fileMode: 0o644,
		logger:   slog.New(slog.DiscardHandler),
	}
}
