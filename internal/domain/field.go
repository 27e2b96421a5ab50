package domain

import (
	"encoding/json"
	"fmt"
)

// Unknown is the sentinel rendered for fields that could not be determined.
const Unknown = "UNKNOWN"

// Field holds a validated value or nothing at all
type Field[T any] struct {
	value T
	known bool
}

// Known wraps a validated value
func Known[T any](v T) Field[T] {
	return Field[T]{value: v, known: true}
}

// Missing returns a field with no value
func Missing[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it is known
func (f Field[T]) Get() (T, bool) {
	return f.value, f.known
}

// IsKnown reports whether the field carries a value
func (f Field[T]) IsKnown() bool {
	return f.known
}

// OrElse returns the value, or fallback when unknown
func (f Field[T]) OrElse(fallback T) T {
	if !f.known {
		return fallback
	}
	return f.value
}

// Format renders a known value with render, and the Unknown sentinel otherwise
func (f Field[T]) Format(render func(T) string) string {
	if !f.known {
		return Unknown
	}
	return render(f.value)
}

// String implements fmt.Stringer
func (f Field[T]) String() string {
	return f.Format(func(v T) string { return fmt.Sprint(v) })
}

// MarshalJSON encodes a known value as itself and a missing one as null
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.known {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
