package storeadapter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParallelism is returned when the degree of parallelism is neither positive nor -1.
	ErrInvalidParallelism = errors.New("degree of parallelism must be either positive or -1")

	// ErrInputData wraps an error yielded by the record source.
	ErrInputData = errors.New("unable to read input data")
)

// ParseError is returned when a raw record cannot be transformed into an entry.
type ParseError struct {
	// Record is the raw record that failed.
	Record any

	// Err is the underlying error.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse input record %v: %v", e.Record, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SinkError is returned when the sink rejects a parsed entry.
type SinkError struct {
	// Key is the key of the rejected entry.
	Key any

	// Err is the underlying error.
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("unable to sink entry %v: %v", e.Key, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
