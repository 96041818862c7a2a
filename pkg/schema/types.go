package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/ludus/pkg/value"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the type as written in a state schema (e.g. "int", "[string]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type basicType struct {
	name  string
	check func(any) error
}

func (t *basicType) Name() string         { return t.name }
func (t *basicType) Validate(v any) error { return t.check(v) }
func (t *basicType) String() string       { return t.name }

// String accepts strings.
func String() Type {
	return &basicType{name: "string", check: func(v any) error {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		return nil
	}}
}

// Int accepts integers, and floats holding whole numbers (JSON decoding).
func Int() Type {
	return &basicType{name: "int", check: func(v any) error {
		f, ok := value.Number(v)
		if !ok {
			return fmt.Errorf("expected int, got %T", v)
		}
		if !value.IsInteger(v) && f != float64(int64(f)) {
			return fmt.Errorf("expected int, got float (not a whole number)")
		}
		return nil
	}}
}

// Float accepts any number.
func Float() Type {
	return &basicType{name: "float", check: func(v any) error {
		if _, ok := value.Number(v); !ok {
			return fmt.Errorf("expected float, got %T", v)
		}
		return nil
	}}
}

// Bool accepts booleans.
func Bool() Type {
	return &basicType{name: "bool", check: func(v any) error {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		return nil
	}}
}

// Object accepts nested objects.
func Object() Type {
	return &basicType{name: "object", check: func(v any) error {
		switch v.(type) {
		case map[string]any, map[any]any:
			return nil
		}
		return fmt.Errorf("expected object, got %T", v)
	}}
}

// Any accepts every value, including nil.
func Any() Type {
	return &basicType{name: "any", check: func(any) error { return nil }}
}

// SliceType validates slices of a specific element type.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *SliceType) Validate(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected slice, got %T", v)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elemType.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Slice creates a slice type validator for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Custom creates a type with a user-defined validation function.
func Custom(name string, validate func(any) error) Type {
	return &basicType{name: name, check: validate}
}

// ParseType converts a schema type name to a Type.
// Supports "string", "int", "float", "bool", "object", "any", their common
// aliases, and slices such as "[int]" or "array<string>".
func ParseType(typeStr string) (Type, error) {
	s := strings.ToLower(strings.TrimSpace(typeStr))

	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	if strings.HasPrefix(s, "array<") && strings.HasSuffix(s, ">") {
		elem, err := ParseType(s[len("array<") : len(s)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}

	switch s {
	case "string":
		return String(), nil
	case "int", "integer":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool", "boolean":
		return Bool(), nil
	case "object", "map", "record":
		return Object(), nil
	case "any", "":
		return Any(), nil
	case "array", "list":
		return Slice(Any()), nil
	}
	return nil, fmt.Errorf("unsupported type: %s", typeStr)
}

// ParseTypeMap converts a map of field names to type strings into a Schema.
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
