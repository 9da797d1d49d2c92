package memstore_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/store/memstore"
	"github.com/karupanerura/store-adapter/store/storetest"
)

func value(i int) int8 {
	return int8(i)
}

func provider(opts ...memstore.Option[string, int8]) storetest.Provider[int8] {
	return func() (storeadapter.CacheStore[string, int8], func()) {
		return storeadapter.NewAdapter(memstore.New(opts...)), func() {}
	}
}

func BenchmarkWrite(b *testing.B) {
	b.Run("SingleBucket", func(b *testing.B) {
		s := storeadapter.NewAdapter(memstore.New(memstore.WithBucketsSize[string, int8](1), memstore.WithAutocommit[string, int8]()))
		storetest.BenchmarkWrite(b, s, value)
	})
	b.Run("MultipleBucket", func(b *testing.B) {
		s := storeadapter.NewAdapter(memstore.New(memstore.WithAutocommit[string, int8]()))
		storetest.BenchmarkWrite(b, s, value)
	})
}

func TestConsistency(t *testing.T) {
	t.Parallel()
	for i := range 7 {
		t.Run(strconv.Itoa(i+1), func(t *testing.T) {
			t.Parallel()

			storetest.TestConsistency(t, provider(memstore.WithBucketsSize[string, int8](i+1)), value)
		})
	}
}

func TestKeyHash(t *testing.T) {
	t.Parallel()
	for i := range 7 {
		t.Run(strconv.Itoa(i+1), func(t *testing.T) {
			t.Parallel()

			bucketSize := i + 1
			storetest.TestConsistency(t, provider(
				memstore.WithBucketsSize[string, int8](bucketSize),
				memstore.WithKeyHash[string, int8](func(key string) int {
					return len(key) % bucketSize
				}),
			), value)
		})
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	storetest.TestDelete(t, provider(), value)
}

func TestSession(t *testing.T) {
	t.Parallel()

	storetest.TestSession(t, provider(), value)
}

func TestAutocommit(t *testing.T) {
	t.Parallel()

	storetest.TestConsistency(t, provider(memstore.WithAutocommit[string, int8]()), value)
	storetest.TestDelete(t, provider(memstore.WithAutocommit[string, int8]()), value)

	t.Run("RollbackKeepsWrites", func(t *testing.T) {
		t.Parallel()

		s := memstore.New(memstore.WithAutocommit[string, int8]())
		if err := s.Write(t.Context(), "a", 1); err != nil {
			t.Fatal(err)
		}
		if err := s.SessionEnd(t.Context(), false); err != nil {
			t.Fatal(err)
		}
		if s.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", s.Len())
		}
	})
}

func TestStore_SessionOverlay(t *testing.T) {
	t.Parallel()

	s := memstore.New[string, int8]()
	ctx := t.Context()

	if err := s.Write(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "b", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadAll(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if df := cmp.Diff(map[string]int8{"a": 1}, got); df != "" {
		t.Errorf("overlay diff=%s", df)
	}
	if s.Len() != 0 {
		t.Errorf("uncommitted changes must not be counted: %d", s.Len())
	}

	var loaded []storeadapter.Entry[string, int8]
	var mu sync.Mutex
	err = storeadapter.NewAdapter(s).LoadCache(ctx, func(_ context.Context, key string, value int8) error {
		mu.Lock()
		defer mu.Unlock()
		loaded = append(loaded, storeadapter.Entry[string, int8]{Key: key, Value: value})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("uncommitted changes must not be loaded: %v", loaded)
	}

	if err := s.SessionEnd(ctx, true); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 committed entry, got %d", s.Len())
	}

	// no session
	if err := s.SessionEnd(ctx, false); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 committed entry, got %d", s.Len())
	}
}

func TestStore_Canceled(t *testing.T) {
	t.Parallel()

	s := memstore.New[string, int8]()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := s.Write(ctx, "a", 1); err == nil {
		t.Error("expected error for canceled context")
	}
	if err := s.Delete(ctx, "a"); err == nil {
		t.Error("expected error for canceled context")
	}
	if _, err := s.Load(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := s.LoadAll(ctx, []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := s.SessionEnd(ctx, true); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	for _, err := range s.InputData(ctx) {
		if err == nil {
			t.Error("expected error for canceled context")
		}
	}
}
