package store_test

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"
	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/source"
	"github.com/karupanerura/store-adapter/store"
)

type hookedError struct {
	op  store.Op
	err error
}

func newHookedStore(fs *source.FunctionsStore[string, string, int]) (*store.ErrorHookStore[string, int], *[]hookedError) {
	var captured []hookedError
	if fs.InputDataFunc == nil {
		fs.InputDataFunc = func(context.Context) iter.Seq2[string, error] {
			return source.Slice[string]()
		}
	}
	if fs.ParseFunc == nil {
		fs.ParseFunc = func(context.Context, string, ...any) (*storeadapter.Entry[string, int], error) {
			return nil, nil
		}
	}
	return &store.ErrorHookStore[string, int]{
		Store: storeadapter.NewAdapter(fs, storeadapter.WithParallelism(storeadapter.Bounded(1))),
		OnError: func(_ context.Context, op store.Op, err error) {
			captured = append(captured, hookedError{op: op, err: err})
		},
	}, &captured
}

func TestErrorHookStore_Load(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("load error")
	s, captured := newHookedStore(&source.FunctionsStore[string, string, int]{
		LoadFunc: func(context.Context, string) (*storeadapter.Entry[string, int], error) {
			return nil, expectedError
		},
	})

	entry, err := s.Load(t.Context(), "a")
	if !errors.Is(err, expectedError) {
		t.Fatalf("expected error %v, got %v", expectedError, err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %v", entry)
	}
	if len(*captured) != 1 || (*captured)[0].op != store.OpLoad || !errors.Is((*captured)[0].err, expectedError) {
		t.Fatalf("unexpected captured errors: %v", *captured)
	}
}

func TestErrorHookStore_WithoutError(t *testing.T) {
	t.Parallel()

	s, captured := newHookedStore(&source.FunctionsStore[string, string, int]{
		LoadFunc: func(_ context.Context, key string) (*storeadapter.Entry[string, int], error) {
			return &storeadapter.Entry[string, int]{Key: key, Value: 1}, nil
		},
		WriteFunc: func(context.Context, string, int) error {
			return nil
		},
	})

	entry, err := s.Load(t.Context(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if df := cmp.Diff(&storeadapter.Entry[string, int]{Key: "a", Value: 1}, entry); df != "" {
		t.Errorf("entry diff=%s", df)
	}
	if err := s.Write(t.Context(), "a", 2); err != nil {
		t.Fatal(err)
	}
	if result := s.WriteAll(t.Context(), []storeadapter.Entry[string, int]{{Key: "b", Value: 3}}); result.Err() != nil {
		t.Fatal(result.Err())
	}
	if err := s.SessionEnd(t.Context(), true); err != nil {
		t.Fatal(err)
	}
	if len(*captured) != 0 {
		t.Fatalf("expected no captured error, got %v", *captured)
	}
}

func TestErrorHookStore_WriteAll(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("write error")
	s, captured := newHookedStore(&source.FunctionsStore[string, string, int]{
		WriteFunc: func(_ context.Context, key string, _ int) error {
			if key == "b" {
				return expectedError
			}
			return nil
		},
	})

	entries := []storeadapter.Entry[string, int]{{Key: "a", Value: 1}, {Key: "b", Value: 2}, {Key: "c", Value: 3}}
	result := s.WriteAll(t.Context(), entries)
	if df := cmp.Diff(entries[1:], result.Remaining()); df != "" {
		t.Errorf("remaining diff=%s", df)
	}
	if len(*captured) != 1 || (*captured)[0].op != store.OpWriteAll || !errors.Is((*captured)[0].err, expectedError) {
		t.Fatalf("unexpected captured errors: %v", *captured)
	}
}

func TestErrorHookStore_DeleteAll(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("delete error")
	s, captured := newHookedStore(&source.FunctionsStore[string, string, int]{
		DeleteAllFunc: func(_ context.Context, keys []string) storeadapter.BatchResult[string] {
			return storeadapter.EachAll(t.Context(), keys, func(_ context.Context, key string) error {
				if key == "x" {
					return expectedError
				}
				return nil
			})
		},
	})

	result := s.DeleteAll(t.Context(), []string{"x", "y"})
	if df := cmp.Diff([]string{"x"}, result.Remaining()); df != "" {
		t.Errorf("remaining diff=%s", df)
	}
	if len(*captured) != 1 || (*captured)[0].op != store.OpDeleteAll {
		t.Fatalf("unexpected captured errors: %v", *captured)
	}
}

func TestErrorHookStore_LoadCache(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("sink error")
	s, captured := newHookedStore(&source.FunctionsStore[string, string, int]{
		InputDataFunc: func(context.Context) iter.Seq2[string, error] {
			return source.Slice("a")
		},
		ParseFunc: func(_ context.Context, record string, _ ...any) (*storeadapter.Entry[string, int], error) {
			return &storeadapter.Entry[string, int]{Key: record, Value: 1}, nil
		},
	})

	err := s.LoadCache(t.Context(), func(context.Context, string, int) error {
		return expectedError
	})
	if !errors.Is(err, expectedError) {
		t.Fatalf("expected error %v, got %v", expectedError, err)
	}
	if len(*captured) != 1 || (*captured)[0].op != store.OpLoadCache {
		t.Fatalf("unexpected captured errors: %v", *captured)
	}
}

func TestErrorHookStore_SessionEnd_NilHook(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("session error")
	s := &store.ErrorHookStore[string, int]{
		Store: storeadapter.NewAdapter(&source.FunctionsStore[string, string, int]{
			SessionEndFunc: func(context.Context, bool) error {
				return expectedError
			},
		}),
	}
	if err := s.SessionEnd(t.Context(), false); !errors.Is(err, expectedError) {
		t.Fatalf("expected error %v, got %v", expectedError, err)
	}
}
