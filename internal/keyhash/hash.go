package keyhash

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"io"
	"math"
	"sync"

	"github.com/goccy/go-reflect"
)

// hash64Pool is a pool for 64-bit FNV-1a hash objects.
var hash64Pool = sync.Pool{
	New: func() any {
		return fnv.New64a()
	},
}

// New returns a hash function for keys of type K.
// Keys must have a boolean, integer, floating point or string kind. Named types are supported.
// It panics for any other kind.
func New[K comparable]() func(K) int {
	var zero K
	typ := reflect.TypeOf(zero)
	if typ == nil {
		panic("interface types cannot be hash keys")
	}

	var f func(reflect.Value) int
	switch typ.Kind() {
	case reflect.Bool:
		f = func(v reflect.Value) int {
			if v.Bool() {
				return fnv64a([]byte{1})
			}
			return fnv64a([]byte{0})
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = func(v reflect.Value) int {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(v.Int()))
			return fnv64a(b[:])
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = func(v reflect.Value) int {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], v.Uint())
			return fnv64a(b[:])
		}
	case reflect.Float32, reflect.Float64:
		f = func(v reflect.Value) int {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float()))
			return fnv64a(b[:])
		}
	case reflect.String:
		f = func(v reflect.Value) int {
			return fnv64aString(v.String())
		}
	default:
		panic(fmt.Sprintf("unsupported key kind: %s (%s)", typ.Kind(), typ))
	}

	return func(key K) int {
		return f(reflect.ValueNoEscapeOf(key))
	}
}

// fnv64a computes a non-negative FNV-1a hash of b.
func fnv64a(b []byte) int {
	h := hash64Pool.Get().(hash.Hash64)
	defer hash64Pool.Put(h)
	h.Reset()
	_, _ = h.Write(b)
	return int(h.Sum64() & math.MaxInt)
}

// fnv64aString is fnv64a for strings.
func fnv64aString(s string) int {
	h := hash64Pool.Get().(hash.Hash64)
	defer hash64Pool.Put(h)
	h.Reset()
	_, _ = io.WriteString(h, s)
	return int(h.Sum64() & math.MaxInt)
}
