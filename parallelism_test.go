package storeadapter_test

import (
	"errors"
	"strconv"
	"testing"

	storeadapter "github.com/karupanerura/store-adapter"
)

func TestParallelismOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n             int
		wantUnbounded bool
		wantWorkers   int
		wantErr       error
	}{
		{n: 1, wantWorkers: 1},
		{n: 8, wantWorkers: 8},
		{n: -1, wantUnbounded: true},
		{n: 0, wantErr: storeadapter.ErrInvalidParallelism},
		{n: -2, wantErr: storeadapter.ErrInvalidParallelism},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.n), func(t *testing.T) {
			t.Parallel()

			p, err := storeadapter.ParallelismOf(tt.n)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("unexpected error: %v (expected: %v)", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if p.IsUnbounded() != tt.wantUnbounded {
				t.Errorf("IsUnbounded() = %t, want %t", p.IsUnbounded(), tt.wantUnbounded)
			}
			if p.Workers() != tt.wantWorkers {
				t.Errorf("Workers() = %d, want %d", p.Workers(), tt.wantWorkers)
			}
			if p.Int() != tt.n {
				t.Errorf("Int() = %d, want %d", p.Int(), tt.n)
			}
			if err := p.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestParallelism_Validate(t *testing.T) {
	t.Parallel()

	for _, p := range []storeadapter.Parallelism{{}, storeadapter.Bounded(0), storeadapter.Bounded(-1)} {
		if err := p.Validate(); !errors.Is(err, storeadapter.ErrInvalidParallelism) {
			t.Errorf("%v.Validate() = %v, want %v", p, err, storeadapter.ErrInvalidParallelism)
		}
	}
	if err := storeadapter.DefaultParallelism().Validate(); err != nil {
		t.Errorf("DefaultParallelism().Validate() = %v", err)
	}
}
