package engine

import (
	"errors"
	"fmt"
)

// errIncomplete is returned by an attempt of a batch that left pending items without failures.
var errIncomplete = errors.New("batch is incomplete")

// BatchError is returned when a batch write or delete could not be completed after retries.
type BatchError[T any] struct {
	// Remaining holds the items that were not persisted.
	Remaining []T

	// Err is the error of the last attempt.
	Err error
}

func (e *BatchError[T]) Error() string {
	return fmt.Sprintf("%d items remain: %v", len(e.Remaining), e.Err)
}

func (e *BatchError[T]) Unwrap() error {
	return e.Err
}
