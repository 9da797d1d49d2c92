package source

import (
	"bufio"
	"context"
	"io"
	"iter"
)

// Slice returns a record sequence that yields the given records in order.
func Slice[R any](records ...R) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Scoped returns a record sequence backed by a handle.
// The handle is opened by open when the iteration starts and closed by release exactly once when it ends.
// next returns the next record, or false when there are no more records.
// An error from open or next is yielded and ends the iteration.
// An error from release is yielded only if the iteration was not stopped by the consumer.
func Scoped[H, R any](ctx context.Context, open func(context.Context) (H, error), next func(context.Context, H) (R, bool, error), release func(H) error) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		h, err := open(ctx)
		if err != nil {
			yield(zero, err)
			return
		}

		// active is false once the consumer stopped the iteration or panicked in the loop body.
		active := true
		emit := func(r R, err error) bool {
			active = false
			if yield(r, err) {
				active = true
			}
			return active
		}
		defer func() {
			if err := release(h); err != nil && active {
				yield(zero, err)
			}
		}()

		for {
			if err := ctx.Err(); err != nil {
				emit(zero, err)
				return
			}
			r, ok, err := next(ctx, h)
			if err != nil {
				emit(zero, err)
				return
			}
			if !ok {
				return
			}
			if !emit(r, nil) {
				return
			}
		}
	}
}

// Lines returns a record sequence that yields every line of the reader returned by open.
// The reader is closed when the iteration ends.
func Lines(ctx context.Context, open func(context.Context) (io.ReadCloser, error)) iter.Seq2[string, error] {
	type handle struct {
		rc      io.ReadCloser
		scanner *bufio.Scanner
	}
	return Scoped(ctx,
		func(ctx context.Context) (*handle, error) {
			rc, err := open(ctx)
			if err != nil {
				return nil, err
			}
			return &handle{rc: rc, scanner: bufio.NewScanner(rc)}, nil
		},
		func(_ context.Context, h *handle) (string, bool, error) {
			if h.scanner.Scan() {
				return h.scanner.Text(), true, nil
			}
			return "", false, h.scanner.Err()
		},
		func(h *handle) error {
			return h.rc.Close()
		},
	)
}
