package storeadapter

import (
	"fmt"
	"runtime"
)

// unboundedDegree is the external representation of Unbounded.
const unboundedDegree = -1

// Parallelism is the degree of parallelism of a bulk load.
// The zero value is invalid; use Bounded, Unbounded or ParallelismOf.
type Parallelism struct {
	workers   int
	unbounded bool
}

// Bounded returns a Parallelism that runs at most n workers at once.
// n must be a natural number; it is checked by Validate.
func Bounded(n int) Parallelism {
	return Parallelism{workers: n}
}

// Unbounded returns a Parallelism without a limit on the number of workers.
func Unbounded() Parallelism {
	return Parallelism{unbounded: true}
}

// DefaultParallelism returns a Parallelism bounded by the number of logical CPUs.
func DefaultParallelism() Parallelism {
	return Bounded(runtime.NumCPU())
}

// ParallelismOf converts an integer degree of parallelism into a Parallelism.
// A positive value means bounded and -1 means unbounded. Any other value is rejected with ErrInvalidParallelism.
func ParallelismOf(n int) (Parallelism, error) {
	switch {
	case n == unboundedDegree:
		return Unbounded(), nil
	case n > 0:
		return Bounded(n), nil
	default:
		return Parallelism{}, fmt.Errorf("%w: %d", ErrInvalidParallelism, n)
	}
}

// IsUnbounded reports whether p has no limit on the number of workers.
func (p Parallelism) IsUnbounded() bool {
	return p.unbounded
}

// Workers returns the maximum number of workers. It returns 0 for Unbounded.
func (p Parallelism) Workers() int {
	if p.unbounded {
		return 0
	}
	return p.workers
}

// Int returns the integer representation of p, -1 for Unbounded.
func (p Parallelism) Int() int {
	if p.unbounded {
		return unboundedDegree
	}
	return p.workers
}

// Validate returns ErrInvalidParallelism if p is neither unbounded nor bounded by a natural number.
func (p Parallelism) Validate() error {
	if p.unbounded || p.workers > 0 {
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidParallelism, p.workers)
}

// String implements fmt.Stringer.
func (p Parallelism) String() string {
	if p.unbounded {
		return "unbounded"
	}
	return fmt.Sprintf("bounded(%d)", p.workers)
}
