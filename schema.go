package teal

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Primitive field base types. Any other base must name a schema or union
// that is already registered when the field is declared.
const (
	TypeString    = "string"
	TypeInt       = "int"
	TypeUint      = "uint"
	TypeFloat     = "float"
	TypeBool      = "bool"
	TypeBytes     = "bytes"
	TypeTimestamp = "timestamp"
	TypeObject    = "object"
	TypeMap       = "map"
	TypeAny       = "any"
)

var primitiveTypes = []string{
	TypeString, TypeInt, TypeUint, TypeFloat, TypeBool,
	TypeBytes, TypeTimestamp, TypeObject, TypeMap, TypeAny,
}

func IsPrimitiveType(name string) bool {
	return slices.Contains(primitiveTypes, name)
}

// FieldType describes one field's declared type: a base type name with
// optional array and nullable markers ("[]int?" is an optional array of
// ints).
type FieldType struct {
	Base     string
	Nullable bool
	IsArray  bool
}

// ParseFieldType parses the "[]base?" descriptor syntax.
func ParseFieldType(s string) FieldType {
	var ft FieldType
	if strings.HasPrefix(s, "[]") {
		ft.IsArray = true
		s = s[2:]
	}
	if strings.HasSuffix(s, "?") {
		ft.Nullable = true
		s = s[:len(s)-1]
	}
	if s == "" {
		s = TypeString
	}
	ft.Base = s
	return ft
}

func (ft FieldType) String() string {
	var b strings.Builder
	if ft.IsArray {
		b.WriteString("[]")
	}
	b.WriteString(ft.Base)
	if ft.Nullable {
		b.WriteByte('?')
	}
	return b.String()
}

type Field struct {
	Name string
	Type FieldType
}

// Schema is a named, ordered field list describing one struct-shaped
// type.
type Schema struct {
	Name   string
	Fields []Field
}

func NewSchema(name string) *Schema {
	return &Schema{Name: name}
}

func (s *Schema) AddField(name string, typ FieldType) {
	s.Fields = append(s.Fields, Field{Name: name, Type: typ})
}

func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// SameLayout reports whether two schemas have identical field lists.
func (s *Schema) SameLayout(other *Schema) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range s.Fields {
		if f != other.Fields[i] {
			return false
		}
	}
	return true
}

// Union is a named set of permitted tagged variant type names.
type Union struct {
	Name     string
	Variants []string
}

func NewUnion(name string, variants ...string) *Union {
	return &Union{Name: name, Variants: variants}
}

func (u *Union) HasVariant(name string) bool {
	return slices.Contains(u.Variants, name)
}

// SchemaConflictError reports two aggregated schemas that share a name
// but disagree on field layout.
type SchemaConflictError struct {
	Name string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("schema %q redefined with a different field layout", e.Name)
}
