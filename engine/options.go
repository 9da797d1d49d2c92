package engine

import (
	"context"
	"log/slog"
	"time"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/store/memstore"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 50 * time.Millisecond
	DefaultRetryMaxDelay = time.Second
)

// Option is the interface for the options of the Engine.
type Option[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] interface {
	apply(*options[K, V])
}

type optionFunc[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] func(*options[K, V])

func (f optionFunc[K, V]) apply(o *options[K, V]) {
	f(o)
}

// WithLogger sets the logger. Retries and store failures are logged at warn level.
func WithLogger[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](logger *slog.Logger) Option[K, V] {
	if logger == nil {
		panic("logger must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.logger = logger
	})
}

// WithRetry sets how many times a batch write or delete is attempted
// and the exponential backoff between the attempts.
func WithRetry[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](attempts uint, delay, maxDelay time.Duration) Option[K, V] {
	if attempts == 0 {
		panic("attempts must be natural number")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.retryAttempts = attempts
		o.retryDelay = delay
		o.retryMaxDelay = maxDelay
	})
}

// WithBucketsSize sets the number of buckets of the local map.
func WithBucketsSize[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](bucketsSize int) Option[K, V] {
	if bucketsSize <= 0 {
		panic("bucketsSize must be natural number")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.bucketsSize = bucketsSize
	})
}

// WithKeyHash sets the key hash function of the local map.
// It is required for the key types that the default hash does not support.
func WithKeyHash[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](f func(K) int) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.hashKey = f
	})
}

// WithTTL sets the time to live of the cached entries. Zero means that the entries never expire.
func WithTTL[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](ttl time.Duration) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.ttl = ttl
	})
}

// WithClock sets the clock used to compute and check the expiration time of the cached entries.
func WithClock[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](clock Clock) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.clock = clock
	})
}

// WithExpirationPolicy sets the expiration policy. The default is DeadlinePolicy.
func WithExpirationPolicy[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](policy ExpirationPolicy) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.policy = policy
	})
}

// WithCloner sets the cloner of the values handed out by Get and GetAll.
// The default is NopCloner.
func WithCloner[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](cloner Cloner[V]) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.cloner = cloner
	})
}

// WithBackgroundContextProvider sets the context provider for the read-through loads.
// A read-through load is shared by the concurrent callers, so it does not run with the context of any of them.
// The provider must return a new context for each call. The default is context.Background.
func WithBackgroundContextProvider[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](provider func() context.Context) Option[K, V] {
	return optionFunc[K, V](func(o *options[K, V]) {
		o.context = provider
	})
}

type options[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	logger        *slog.Logger
	retryAttempts uint
	retryDelay    time.Duration
	retryMaxDelay time.Duration
	bucketsSize   int
	hashKey       func(K) int
	ttl           time.Duration
	clock         Clock
	policy        ExpirationPolicy
	cloner        Cloner[V]
	context       func() context.Context
}

func defaultOptions[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint]() options[K, V] {
	return options[K, V]{
		logger:        slog.New(slog.DiscardHandler),
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		retryMaxDelay: DefaultRetryMaxDelay,
		bucketsSize:   memstore.DefaultBucketsSize,
		clock:         SystemClock,
		policy:        DeadlinePolicy{},
		cloner:        NopCloner[V]{},
		context:       context.Background,
	}
}

func (o *options[K, V]) localOptions() []memstore.Option[K, slot[V]] {
	opts := []memstore.Option[K, slot[V]]{
		memstore.WithAutocommit[K, slot[V]](),
		memstore.WithBucketsSize[K, slot[V]](o.bucketsSize),
	}
	if o.hashKey != nil {
		opts = append(opts, memstore.WithKeyHash[K, slot[V]](o.hashKey))
	}
	return opts
}
