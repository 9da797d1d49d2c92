package memstore

import (
	"log/slog"

	storeadapter "github.com/karupanerura/store-adapter"
)

// DefaultBucketsSize is the default number of buckets in the store.
var DefaultBucketsSize = 64

// Option is the interface for the options of the in-memory store.
type Option[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] interface {
	apply(*options[K, V])
}

type optionFunc[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] func(*options[K, V])

func (f optionFunc[K, V]) apply(o *options[K, V]) {
	f(o)
}

// WithKeyHash sets the key hash function to the store.
func WithKeyHash[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](f func(K) int) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.hashKey = f
	})
}

// WithBucketsSize sets the number of buckets in the store.
// The number of buckets must be a natural number.
func WithBucketsSize[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](bucketsSize int) Option[K, V] {
	if bucketsSize <= 0 {
		panic("bucketsSize must be natural number")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.bucketsSize = bucketsSize
	})
}

// WithAutocommit makes every write and delete durable immediately.
// SessionEnd is a no-op for such a store.
func WithAutocommit[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint]() Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.autocommit = true
	})
}

// WithLogger sets the logger. Sessions are logged at debug level.
func WithLogger[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](logger *slog.Logger) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.logger = logger
	})
}

type options[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	hashKey     func(K) int
	bucketsSize int
	autocommit  bool
	logger      *slog.Logger
}

func defaultOptions[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint]() options[K, V] {
	return options[K, V]{
		bucketsSize: DefaultBucketsSize,
		logger:      slog.New(slog.DiscardHandler),
	}
}
