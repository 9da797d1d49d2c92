package engine

import (
	"reflect"

	storeadapter "github.com/karupanerura/store-adapter"
)

// Cloner copies the values handed out by the engine, so that callers cannot mutate the cached ones.
type Cloner[V storeadapter.ValueConstraint] interface {
	CloneValue(V) V
}

// ClonerFunc is a function type that implements the Cloner interface.
type ClonerFunc[V storeadapter.ValueConstraint] func(v V) V

// CloneValue calls the function.
func (f ClonerFunc[V]) CloneValue(v V) V {
	return f(v)
}

// NopCloner returns the values as they are.
// It is the default, suitable for immutable values.
type NopCloner[V storeadapter.ValueConstraint] struct{}

// CloneValue returns the input value.
func (NopCloner[V]) CloneValue(v V) V {
	return v
}

// DefaultCloner returns a cloner for the value type.
// It uses the Clone or DeepCopy method of the type if any, and NopCloner for scalar kinds.
// It panics for any other type.
func DefaultCloner[V storeadapter.ValueConstraint]() Cloner[V] {
	type cloner interface {
		Clone() V
	}
	type deepCopier interface {
		DeepCopy() V
	}

	var zero V
	switch any(zero).(type) {
	case cloner:
		return ClonerFunc[V](func(v V) V {
			return any(v).(cloner).Clone()
		})
	case deepCopier:
		return ClonerFunc[V](func(v V) V {
			return any(v).(deepCopier).DeepCopy()
		})
	}

	typ := reflect.TypeFor[V]()
	switch typ.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return NopCloner[V]{}
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return ClonerFunc[V](func(v V) V {
				rv := reflect.ValueOf(v)
				if rv.IsNil() {
					return v
				}
				c := reflect.MakeSlice(typ, rv.Len(), rv.Len())
				reflect.Copy(c, rv)
				return c.Interface().(V)
			})
		}
	}
	panic("value type " + typ.String() + " does not have Clone or DeepCopy method")
}
