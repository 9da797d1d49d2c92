package engine_test

import (
	"testing"

	"github.com/karupanerura/store-adapter/engine"
)

type clonerStruct struct {
	Value int
}

func (s *clonerStruct) Clone() *clonerStruct {
	return &clonerStruct{Value: s.Value}
}

type deepCopierStruct struct {
	Value int
}

func (s *deepCopierStruct) DeepCopy() *deepCopierStruct {
	return &deepCopierStruct{Value: s.Value}
}

func TestDefaultCloner(t *testing.T) {
	t.Parallel()

	t.Run("Clone method", func(t *testing.T) {
		t.Parallel()

		original := &clonerStruct{Value: 42}
		cloned := engine.DefaultCloner[*clonerStruct]().CloneValue(original)
		if original == cloned {
			t.Error("Expected different pointer, got same pointer")
		}
		original.Value = 100
		if cloned.Value != 42 {
			t.Errorf("Expected cloned value to remain unchanged, got %d", cloned.Value)
		}
	})

	t.Run("DeepCopy method", func(t *testing.T) {
		t.Parallel()

		original := &deepCopierStruct{Value: 42}
		cloned := engine.DefaultCloner[*deepCopierStruct]().CloneValue(original)
		if original == cloned {
			t.Error("Expected different pointer, got same pointer")
		}
		original.Value = 100
		if cloned.Value != 42 {
			t.Errorf("Expected cloned value to remain unchanged, got %d", cloned.Value)
		}
	})

	t.Run("scalar", func(t *testing.T) {
		t.Parallel()

		if _, ok := engine.DefaultCloner[string]().(engine.NopCloner[string]); !ok {
			t.Error("Expected NopCloner for string")
		}
		if _, ok := engine.DefaultCloner[int64]().(engine.NopCloner[int64]); !ok {
			t.Error("Expected NopCloner for int64")
		}
	})

	t.Run("bytes", func(t *testing.T) {
		t.Parallel()

		cloner := engine.DefaultCloner[[]byte]()
		original := []byte("abc")
		cloned := cloner.CloneValue(original)
		original[0] = 'x'
		if string(cloned) != "abc" {
			t.Errorf("Expected cloned bytes to remain unchanged, got %q", cloned)
		}
		if cloner.CloneValue(nil) != nil {
			t.Error("Expected nil for nil bytes")
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for unsupported type")
			}
		}()
		engine.DefaultCloner[map[string]int]()
	})
}
