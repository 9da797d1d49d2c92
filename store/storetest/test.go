// storetest package provides generic test cases for backing store implementations.
package storetest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	storeadapter "github.com/karupanerura/store-adapter"
	"golang.org/x/sync/errgroup"
)

// Provider creates a fresh store and returns it with its release function.
type Provider[V storeadapter.ValueConstraint] func() (storeadapter.CacheStore[string, V], func())

// BenchmarkWrite benchmarks the Write method of the backing store.
func BenchmarkWrite[V storeadapter.ValueConstraint](b *testing.B, s storeadapter.CacheStore[string, V], value func(int) V) {
	ctx := b.Context()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Write(ctx, key(i%256), value(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func key(i int) string {
	return fmt.Sprintf("k%03d", i)
}

func newPatterns[V storeadapter.ValueConstraint](n int, value func(int) V) []storeadapter.Entry[string, V] {
	entries := make([]storeadapter.Entry[string, V], n)
	for i := range entries {
		entries[i] = storeadapter.Entry[string, V]{Key: key(i), Value: value(i)}
	}
	rand.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	return entries
}

func sortEntries[V storeadapter.ValueConstraint](entries []storeadapter.Entry[string, V]) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
}

// TestConsistency tests that the written entries are read back by Load, LoadAll and LoadCache.
func TestConsistency[V storeadapter.ValueConstraint](t *testing.T, provider Provider[V], value func(int) V) {
	t.Run("Consistency", func(t *testing.T) {
		t.Parallel()

		t.Run("WriteAndLoad", func(t *testing.T) {
			t.Parallel()

			s, release := provider()
			defer release()

			patterns := newPatterns(10, value)
			var eg errgroup.Group
			for _, pattern := range patterns {
				eg.Go(func() error {
					entry, err := s.Load(t.Context(), pattern.Key)
					if err != nil {
						return err
					} else if entry != nil {
						return fmt.Errorf("unexpected exists value for key %s", pattern.Key)
					}
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatal(err)
			}

			// Write and SessionEnd are called one at a time.
			for _, pattern := range patterns {
				if err := s.Write(t.Context(), pattern.Key, pattern.Value); err != nil {
					t.Fatal(err)
				}
			}
			if err := s.SessionEnd(t.Context(), true); err != nil {
				t.Fatal(err)
			}

			eg = errgroup.Group{}
			entries := make([]*storeadapter.Entry[string, V], len(patterns))
			for i, pattern := range patterns {
				eg.Go(func() error {
					entry, err := s.Load(t.Context(), pattern.Key)
					if err != nil {
						return err
					}
					entries[i] = entry
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				t.Fatal(err)
			}

			for i, pattern := range patterns {
				if entries[i] == nil {
					t.Errorf("pattern[%d] key=%s is not found", i, pattern.Key)
					continue
				}
				if df := cmp.Diff(pattern, *entries[i]); df != "" {
					t.Errorf("pattern[%d] key=%s entry diff=%s", i, pattern.Key, df)
				}
			}
		})

		t.Run("WriteAllAndLoadAll", func(t *testing.T) {
			t.Parallel()

			s, release := provider()
			defer release()

			patterns := newPatterns(16, value)
			result := s.WriteAll(t.Context(), patterns)
			if err := result.Err(); err != nil {
				t.Fatal(err)
			}
			if remaining := result.Remaining(); len(remaining) != 0 {
				t.Fatalf("unexpected remaining entries: %v", remaining)
			}
			if err := s.SessionEnd(t.Context(), true); err != nil {
				t.Fatal(err)
			}

			keys := make([]string, 0, len(patterns)+1)
			expected := make(map[string]V, len(patterns))
			for _, pattern := range patterns {
				keys = append(keys, pattern.Key)
				expected[pattern.Key] = pattern.Value
			}
			keys = append(keys, "missing")

			got, err := s.LoadAll(t.Context(), keys)
			if err != nil {
				t.Fatal(err)
			}
			if df := cmp.Diff(expected, got); df != "" {
				t.Errorf("entries diff=%s", df)
			}
		})

		t.Run("LoadCache", func(t *testing.T) {
			t.Parallel()

			s, release := provider()
			defer release()

			patterns := newPatterns(32, value)
			if err := s.WriteAll(t.Context(), patterns).Err(); err != nil {
				t.Fatal(err)
			}
			if err := s.SessionEnd(t.Context(), true); err != nil {
				t.Fatal(err)
			}

			var mu sync.Mutex
			var got []storeadapter.Entry[string, V]
			err := s.LoadCache(t.Context(), func(_ context.Context, key string, value V) error {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, storeadapter.Entry[string, V]{Key: key, Value: value})
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}

			sortEntries(patterns)
			sortEntries(got)
			if df := cmp.Diff(patterns, got); df != "" {
				t.Errorf("entries diff=%s", df)
			}
		})
	})
}

// TestDelete tests the delete operations, including keys without a mapping.
func TestDelete[V storeadapter.ValueConstraint](t *testing.T, provider Provider[V], value func(int) V) {
	t.Run("Delete", func(t *testing.T) {
		t.Parallel()

		t.Run("Unmapped", func(t *testing.T) {
			t.Parallel()

			s, release := provider()
			defer release()

			if err := s.Delete(t.Context(), "missing"); err != nil {
				t.Fatal(err)
			}
			result := s.DeleteAll(t.Context(), []string{"missing1", "missing2", "missing3"})
			if err := result.Err(); err != nil {
				t.Fatal(err)
			}
			if remaining := result.Remaining(); len(remaining) != 0 {
				t.Fatalf("unexpected remaining keys: %v", remaining)
			}
			if err := s.SessionEnd(t.Context(), true); err != nil {
				t.Fatal(err)
			}
		})

		t.Run("Mapped", func(t *testing.T) {
			t.Parallel()

			s, release := provider()
			defer release()

			patterns := newPatterns(8, value)
			if err := s.WriteAll(t.Context(), patterns).Err(); err != nil {
				t.Fatal(err)
			}
			if err := s.SessionEnd(t.Context(), true); err != nil {
				t.Fatal(err)
			}

			if err := s.Delete(t.Context(), patterns[0].Key); err != nil {
				t.Fatal(err)
			}
			keys := []string{patterns[1].Key, patterns[2].Key, "missing"}
			if result := s.DeleteAll(t.Context(), keys); result.Err() != nil || len(result.Remaining()) != 0 {
				t.Fatalf("unexpected result: %+v", result)
			}
			if err := s.SessionEnd(t.Context(), true); err != nil {
				t.Fatal(err)
			}

			for i, pattern := range patterns {
				entry, err := s.Load(t.Context(), pattern.Key)
				if err != nil {
					t.Fatal(err)
				}
				if deleted := i < 3; deleted != (entry == nil) {
					t.Errorf("pattern[%d] key=%s deleted=%v entry=%v", i, pattern.Key, deleted, entry)
				}
			}
		})
	})
}

// TestSession tests that SessionEnd commits or discards the buffered changes.
// It is only applicable to the stores that buffer changes in a session.
func TestSession[V storeadapter.ValueConstraint](t *testing.T, provider Provider[V], value func(int) V) {
	t.Run("Session", func(t *testing.T) {
		t.Parallel()

		for _, commit := range []bool{true, false} {
			t.Run(fmt.Sprintf("commit=%v", commit), func(t *testing.T) {
				t.Parallel()

				s, release := provider()
				defer release()

				base := newPatterns(4, value)
				if err := s.WriteAll(t.Context(), base).Err(); err != nil {
					t.Fatal(err)
				}
				if err := s.SessionEnd(t.Context(), true); err != nil {
					t.Fatal(err)
				}

				written := storeadapter.Entry[string, V]{Key: "written", Value: value(100)}
				if err := s.Write(t.Context(), written.Key, written.Value); err != nil {
					t.Fatal(err)
				}
				if err := s.Delete(t.Context(), base[0].Key); err != nil {
					t.Fatal(err)
				}
				if err := s.SessionEnd(t.Context(), commit); err != nil {
					t.Fatal(err)
				}

				got, err := s.Load(t.Context(), written.Key)
				if err != nil {
					t.Fatal(err)
				}
				if commit {
					if got == nil {
						t.Fatal("committed write must be visible")
					}
					if df := cmp.Diff(written, *got); df != "" {
						t.Errorf("entry diff=%s", df)
					}
				} else if got != nil {
					t.Errorf("rolled back write must not be visible: %v", got)
				}

				deleted, err := s.Load(t.Context(), base[0].Key)
				if err != nil {
					t.Fatal(err)
				}
				if commit != (deleted == nil) {
					t.Errorf("commit=%v but deleted entry=%v", commit, deleted)
				}
			})
		}
	})
}
