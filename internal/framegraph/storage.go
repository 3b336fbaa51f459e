package framegraph

import (
	"reflect"
)

// PassDataStorage holds each pass's setup value together with its dynamic
// type, so retrieval is checked instead of reinterpreted.
type PassDataStorage struct {
	entries []storedSetup
}

type storedSetup struct {
	typ   reflect.Type
	value any
}

// Store appends v and returns its index.
func (s *PassDataStorage) Store(v any) int {
	s.entries = append(s.entries, storedSetup{typ: reflect.TypeOf(v), value: v})
	return len(s.entries) - 1
}

// Len returns the number of stored values.
func (s *PassDataStorage) Len() int {
	return len(s.entries)
}

// TypeAt returns the type recorded for index, or nil.
func (s *PassDataStorage) TypeAt(index int) reflect.Type {
	if index < 0 || index >= len(s.entries) {
		return nil
	}
	return s.entries[index].typ
}

// Fetch recovers the value at index as T. T must be exactly the stored type;
// an interface T that the stored value merely implements is still a mismatch.
func Fetch[T any](s *PassDataStorage, index int) (T, error) {
	var zero T
	want := reflect.TypeFor[T]()
	if index < 0 || index >= len(s.entries) {
		return zero, newError(ErrCodeTypeMismatch, "no setup stored at index %d (want %s)", index, want)
	}
	e := s.entries[index]
	if e.typ != want {
		return zero, newError(ErrCodeTypeMismatch, "setup at index %d is %s, not %s", index, e.typ, want)
	}
	return e.value.(T), nil
}

// checkSetupKind rejects setup values that can carry references to physical
// or mutable state, at any depth. Setup objects must be copyable descriptors.
func checkSetupKind[S any]() error {
	t := reflect.TypeFor[S]()
	if bad, path := referenceKind(t, t.String(), map[reflect.Type]bool{}); bad != nil {
		return newError(ErrCodeInvalidSetup, "setup %s must be a value type, %s is %s", t, path, bad.Kind())
	}
	return nil
}

// referenceKind returns the first type reachable from t that is a reference
// kind, with the field path leading to it.
func referenceKind(t reflect.Type, path string, seen map[reflect.Type]bool) (reflect.Type, string) {
	if seen[t] {
		return nil, ""
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Func, reflect.Chan, reflect.Map, reflect.Interface:
		return t, path
	case reflect.Slice, reflect.Array:
		return referenceKind(t.Elem(), path+"[]", seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if bad, p := referenceKind(f.Type, path+"."+f.Name, seen); bad != nil {
				return bad, p
			}
		}
	}
	return nil, ""
}
