// Package clone wraps three deep-copy dependencies
// (mitchellh/copystructure, huandu/go-clone, barkimedes/go-deepcopy),
// each covering a distinct shape of data, so that "metadata objects
// are cloned, never aliased" (spec §4.2, §5) holds without
// hand-rolled per-field copying.
package clone

import (
	"fmt"

	deepcopy "github.com/barkimedes/go-deepcopy"
	clone "github.com/huandu/go-clone"
	"github.com/mitchellh/copystructure"
)

// Struct deep-clones a Go struct value using copystructure. Only
// exported fields are copied; unexported fields of the result are left
// at their zero values.
func Struct[T any](v T) (T, error) {
	copied, err := copystructure.Copy(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("clone: struct copy failed: %w", err)
	}
	typed, ok := copied.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("clone: struct copy returned unexpected type %T", copied)
	}
	return typed, nil
}

// Map bulk-clones a field map (Entity's internal field-name -> meta
// storage) using go-clone, which is tuned for cloning whole
// map/slice/struct graphs in one pass rather than one field at a
// time.
func Map[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	return clone.Clone(m).(map[K]V)
}

// JSON deep-clones a loosely-typed JSON payload (the map[string]any /
// []any trees produced by encoding/json decode and carried inside
// value.Value) using go-deepcopy, which targets exactly that
// untyped-interface shape rather than concrete struct types.
func JSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	copied, err := deepcopy.Anything(v)
	if err != nil {
		return nil, fmt.Errorf("clone: json copy failed: %w", err)
	}
	return copied, nil
}
