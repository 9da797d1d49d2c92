package storeadapter

import (
	"context"
	"errors"
)

// Failure is an item of a batch that could not be processed.
type Failure[T any] struct {
	// Item is the failed item.
	Item T

	// Err is the reason of the failure.
	Err error
}

// BatchResult is the outcome of a batch write or delete.
// Every item of the batch appears in exactly one of Succeeded, Failed or Pending.
type BatchResult[T any] struct {
	// Succeeded holds the items that were persisted.
	Succeeded []T

	// Failed holds the items that were attempted and failed.
	Failed []Failure[T]

	// Pending holds the items that were not attempted because the batch was aborted.
	Pending []T
}

// SucceededAll returns a BatchResult that reports every item as succeeded.
func SucceededAll[T any](items []T) BatchResult[T] {
	return BatchResult[T]{Succeeded: items}
}

// Remaining returns the items that still need to be processed: the failed items followed by the pending items.
func (r BatchResult[T]) Remaining() []T {
	if len(r.Failed) == 0 && len(r.Pending) == 0 {
		return nil
	}
	items := make([]T, 0, len(r.Failed)+len(r.Pending))
	for _, f := range r.Failed {
		items = append(items, f.Item)
	}
	return append(items, r.Pending...)
}

// Err returns the joined errors of the failed items, or nil if no item failed.
// Pending items alone do not produce an error.
func (r BatchResult[T]) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

// Len returns the number of items in the result.
func (r BatchResult[T]) Len() int {
	return len(r.Succeeded) + len(r.Failed) + len(r.Pending)
}

// Each processes the items one by one with fn.
// It stops at the first failure and reports the items after it as pending.
// A canceled context is reported the same way, as a failure of the next item.
func Each[T any](ctx context.Context, items []T, fn func(context.Context, T) error) BatchResult[T] {
	var result BatchResult[T]
	for i, item := range items {
		err := ctx.Err()
		if err == nil {
			err = fn(ctx, item)
		}
		if err != nil {
			result.Failed = []Failure[T]{{Item: item, Err: err}}
			if rest := items[i+1:]; len(rest) != 0 {
				result.Pending = append([]T(nil), rest...)
			}
			return result
		}
		result.Succeeded = append(result.Succeeded, item)
	}
	return result
}

// EachAll processes every item with fn and reports every failure.
// Items are skipped as pending once the context is canceled.
func EachAll[T any](ctx context.Context, items []T, fn func(context.Context, T) error) BatchResult[T] {
	var result BatchResult[T]
	for i, item := range items {
		if ctx.Err() != nil {
			result.Pending = append([]T(nil), items[i:]...)
			return result
		}
		if err := fn(ctx, item); err != nil {
			result.Failed = append(result.Failed, Failure[T]{Item: item, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, item)
	}
	return result
}
