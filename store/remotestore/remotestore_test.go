package remotestore_test

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/source"
	"github.com/karupanerura/store-adapter/store"
	"github.com/karupanerura/store-adapter/store/memstore"
	"github.com/karupanerura/store-adapter/store/remotestore"
	"github.com/karupanerura/store-adapter/store/storetest"
)

func value(i int) string {
	return "value-" + strconv.Itoa(i)
}

func serve(t *testing.T, served storeadapter.CacheStore[string, string]) *remotestore.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle(remotestore.NewHandler(served))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return remotestore.NewClient(server.Client(), server.URL)
}

func provider(t *testing.T) storetest.Provider[string] {
	return func() (storeadapter.CacheStore[string, string], func()) {
		mux := http.NewServeMux()
		mux.Handle(remotestore.NewHandler(storeadapter.NewAdapter(memstore.New[string, string]())))
		server := httptest.NewServer(mux)
		client := remotestore.NewClient(server.Client(), server.URL)
		return storeadapter.NewAdapter(client), server.Close
	}
}

func TestConsistency(t *testing.T) {
	t.Parallel()

	storetest.TestConsistency(t, provider(t), value)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	storetest.TestDelete(t, provider(t), value)
}

func TestSession(t *testing.T) {
	t.Parallel()

	storetest.TestSession(t, provider(t), value)
}

func TestClient_WriteAllPartialFailure(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("rejected")
	served := storeadapter.NewAdapter(&source.FunctionsStore[string, string, string]{
		WriteFunc: func(_ context.Context, key string, _ string) error {
			if key == "b" {
				return expectedError
			}
			return nil
		},
	})
	client := serve(t, served)

	entries := []storeadapter.Entry[string, string]{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}}
	result := client.WriteAll(t.Context(), entries)
	if df := cmp.Diff(entries[:1], result.Succeeded); df != "" {
		t.Errorf("succeeded diff=%s", df)
	}
	if df := cmp.Diff(entries[1:], result.Remaining()); df != "" {
		t.Errorf("remaining diff=%s", df)
	}
	if !errors.Is(result.Err(), store.ErrWrite) {
		t.Errorf("expected ErrWrite, got %v", result.Err())
	}
}

func TestClient_DuplicatedKeys(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	served := storeadapter.NewAdapter(&source.FunctionsStore[string, string, string]{
		DeleteFunc: func(context.Context, string) error {
			if calls.Add(1) == 2 {
				return errors.New("second call fails")
			}
			return nil
		},
	})
	client := serve(t, served)

	result := client.DeleteAll(t.Context(), []string{"x", "x", "y"})
	if df := cmp.Diff([]string{"x"}, result.Succeeded); df != "" {
		t.Errorf("succeeded diff=%s", df)
	}
	if df := cmp.Diff([]string{"x", "y"}, result.Remaining()); df != "" {
		t.Errorf("remaining diff=%s", df)
	}
}

func TestClient_LoadAllFallback(t *testing.T) {
	t.Parallel()

	client := serve(t, storeadapter.NewAdapter(&source.FunctionsStore[string, string, string]{}))
	m, err := client.LoadAll(t.Context(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("expected nil map, got %v", m)
	}

	client = serve(t, storeadapter.NewAdapter(&source.FunctionsStore[string, string, string]{
		LoadAllFunc: func(context.Context, []string) (map[string]string, error) {
			return map[string]string{}, nil
		},
	}))
	m, err = client.LoadAll(t.Context(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestClient_Unavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := remotestore.NewClient(server.Client(), server.URL)

	if _, err := client.Load(t.Context(), "a"); !errors.Is(err, store.ErrLoad) {
		t.Errorf("expected ErrLoad, got %v", err)
	}
	if err := client.SessionEnd(t.Context(), true); !errors.Is(err, store.ErrSessionEnd) {
		t.Errorf("expected ErrSessionEnd, got %v", err)
	}
	result := client.WriteAll(t.Context(), []storeadapter.Entry[string, string]{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	if len(result.Failed) != 2 || !errors.Is(result.Err(), store.ErrWrite) {
		t.Errorf("expected every entry to fail, got %+v", result)
	}
	if connect.CodeOf(result.Failed[0].Err) != connect.CodeUnavailable {
		t.Errorf("expected unavailable, got %v", connect.CodeOf(result.Failed[0].Err))
	}
}

func TestClient_ScanFailure(t *testing.T) {
	t.Parallel()

	expectedError := errors.New("broken source")
	served := storeadapter.NewAdapter(&source.FunctionsStore[string, string, string]{
		InputDataFunc: func(context.Context) iter.Seq2[string, error] {
			return func(yield func(string, error) bool) {
				if !yield("a", nil) {
					return
				}
				yield("", expectedError)
			}
		},
		ParseFunc: func(_ context.Context, record string, _ ...any) (*storeadapter.Entry[string, string], error) {
			return &storeadapter.Entry[string, string]{Key: record, Value: record}, nil
		},
	}, storeadapter.WithParallelism(storeadapter.Bounded(1)))
	client := serve(t, served)

	err := storeadapter.NewAdapter(client).LoadCache(t.Context(), func(context.Context, string, string) error {
		return nil
	})
	if !errors.Is(err, storeadapter.ErrInputData) || !errors.Is(err, store.ErrScan) {
		t.Fatalf("expected scan error, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeInternal {
		t.Errorf("expected internal, got %v", connect.CodeOf(err))
	}
}

func TestClient_ScanStreamReleased(t *testing.T) {
	t.Parallel()

	records := make([]string, 50)
	for i := range records {
		records[i] = strconv.Itoa(i)
	}
	served := storeadapter.NewAdapter(&source.FunctionsStore[string, string, string]{
		InputDataFunc: func(context.Context) iter.Seq2[string, error] {
			return source.Slice(records...)
		},
		ParseFunc: func(_ context.Context, record string, _ ...any) (*storeadapter.Entry[string, string], error) {
			return &storeadapter.Entry[string, string]{Key: record, Value: record}, nil
		},
	})
	client := serve(t, served)

	// The load stops at the first rejected entry and the stream is closed.
	expectedError := errors.New("full")
	var (
		mu   sync.Mutex
		sunk int
	)
	err := storeadapter.NewAdapter(client, storeadapter.WithParallelism(storeadapter.Bounded(2))).LoadCache(t.Context(), func(context.Context, string, string) error {
		mu.Lock()
		defer mu.Unlock()
		sunk++
		if sunk == 5 {
			return expectedError
		}
		return nil
	})
	if !errors.Is(err, expectedError) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if sunk >= len(records) {
		t.Errorf("load must stop early, but %d entries were sunk", sunk)
	}

	// The server is still usable after the stream was closed.
	if _, err := client.Load(t.Context(), "a"); err != nil {
		t.Fatal(err)
	}
}

func TestClient_Parse(t *testing.T) {
	t.Parallel()

	client := remotestore.NewClient(http.DefaultClient, "http://localhost")
	for _, tc := range []struct {
		name   string
		record *structpb.Struct
		ok     bool
	}{
		{"valid", &structpb.Struct{Fields: map[string]*structpb.Value{"key": structpb.NewStringValue("k"), "value": structpb.NewStringValue("v")}}, true},
		{"without value", &structpb.Struct{Fields: map[string]*structpb.Value{"key": structpb.NewStringValue("k")}}, false},
		{"number key", &structpb.Struct{Fields: map[string]*structpb.Value{"key": structpb.NewNumberValue(1), "value": structpb.NewStringValue("v")}}, false},
		{"empty", &structpb.Struct{}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			entry, err := client.Parse(t.Context(), tc.record)
			if tc.ok {
				if err != nil {
					t.Fatal(err)
				}
				if df := cmp.Diff(&storeadapter.Entry[string, string]{Key: "k", Value: "v"}, entry); df != "" {
					t.Errorf("entry diff=%s", df)
				}
				return
			}
			if !errors.Is(err, remotestore.ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}
