package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/store"
)

// ErrInvalidKey is returned when a key is not a local slash separated path.
var ErrInvalidKey = errors.New("invalid key")

// Store is a backing store on the file system.
type Store struct {
	root    string
	options options
}

var (
	_ storeadapter.BulkSource[string, string, []byte] = (*Store)(nil)
	_ storeadapter.Loader[string, []byte]             = (*Store)(nil)
	_ storeadapter.MultiLoader[string, []byte]        = (*Store)(nil)
	_ storeadapter.Writer[string, []byte]             = (*Store)(nil)
	_ storeadapter.Deleter[string]                    = (*Store)(nil)
	_ storeadapter.MultiDeleter[string]               = (*Store)(nil)
)

// New creates a Store rooted at the given directory.
// The directory is created on the first write if it does not exist.
func New(root string, opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Store{root: filepath.Clean(root), options: o}
}

func (s *Store) path(key string) (string, error) {
	p := filepath.FromSlash(key)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, elem := range strings.Split(key, "/") {
		if strings.HasPrefix(elem, ".") {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return filepath.Join(s.root, p), nil
}

// InputData walks the root directory and yields the key of every file.
// A missing root directory yields nothing.
func (s *Store) InputData(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == s.root {
					return fs.SkipAll
				}
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return err
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", fmt.Errorf("%w: %w", store.ErrScan, err))
		}
	}
}

// Parse reads the file of the key.
// A file removed after it was listed is skipped.
func (s *Store) Parse(ctx context.Context, key string, _ ...any) (*storeadapter.Entry[string, []byte], error) {
	return s.Load(ctx, key)
}

// Load reads the file of the key. It returns nil if the file does not exist.
func (s *Store) Load(ctx context.Context, key string) (*storeadapter.Entry[string, []byte], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", store.ErrLoad, key, err)
	}
	return &storeadapter.Entry[string, []byte]{Key: key, Value: data}, nil
}

// LoadAll reads the files of the keys. Keys without a file are omitted.
func (s *Store) LoadAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	m := make(map[string][]byte, len(keys))
	for _, key := range keys {
		entry, err := s.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			m[key] = entry.Value
		}
	}
	return m, nil
}

// Write atomically replaces the file of the key with the value.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", store.ErrWrite, key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", store.ErrWrite, key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", store.ErrWrite, key, err)
	}
	if err := tmp.Chmod(s.options.fileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", store.ErrWrite, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", store.ErrWrite, key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", store.ErrWrite, key, err)
	}

	s.options.logger.DebugContext(ctx, "file written", slog.String("key", key), slog.Int("size", len(value)))
	return nil
}

// Delete removes the file of the key and the directories left empty by it.
// A missing file is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", store.ErrDelete, key, err)
	}

	dir := filepath.Dir(path)
	for dir != s.root {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	s.options.logger.DebugContext(ctx, "file deleted", slog.String("key", key))
	return nil
}

// DeleteAll removes the files of the keys. Every key is attempted even if some fail.
func (s *Store) DeleteAll(ctx context.Context, keys []string) storeadapter.BatchResult[string] {
	return storeadapter.EachAll(ctx, keys, s.Delete)
}
