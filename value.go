// Package teal defines the document model for the teal data format: a
// closed set of value variants, struct and union schemas, and the
// Document container that binds them together. The text, binary, and
// jsonio packages all convert to and from this model.
package teal

import (
	"math"

	"github.com/tealdata/teal/pkg/ordmap"
)

// MaxNestingDepth is the recursion ceiling shared by the text parser and
// the binary decoder. A document nested deeper than this is rejected on
// both paths with the same error, so acceptance is representation
// independent.
const MaxNestingDepth = 256

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
	KindMap
	KindRef
	KindTagged
	KindTimestamp
	KindJSONNumber
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindMap:
		return "map"
	case KindRef:
		return "ref"
	case KindTagged:
		return "tagged"
	case KindTimestamp:
		return "timestamp"
	case KindJSONNumber:
		return "jsonnumber"
	}
	return "unknown"
}

// Value is the closed set of teal data variants.
type Value interface {
	Kind() Kind
}

type Null struct{}

type Bool bool

type Int int64

type Uint uint64

type Float float64

type String string

type Bytes []byte

type Array struct {
	Elems []Value
}

// Object is a string-keyed container that preserves insertion order.
// Setting an existing key replaces its value but keeps the original
// position (last write wins).
type Object struct {
	ordmap.Map[Value]
}

type Entry struct {
	Key   Value
	Value Value
}

// Map is an ordered sequence of key/value pairs whose keys need not be
// strings.
type Map struct {
	Entries []Entry
}

// Ref is a symbolic name. The format never resolves or validates it;
// resolution is the caller's business.
type Ref string

// Tagged wraps one inner value with a tag name, the data half of a
// discriminated union.
type Tagged struct {
	Tag   string
	Value Value
}

// JSONNumber preserves the verbatim text of a numeric literal that does
// not fit losslessly into Int, Uint, or Float.
type JSONNumber string

func (Null) Kind() Kind       { return KindNull }
func (Bool) Kind() Kind       { return KindBool }
func (Int) Kind() Kind        { return KindInt }
func (Uint) Kind() Kind       { return KindUint }
func (Float) Kind() Kind      { return KindFloat }
func (String) Kind() Kind     { return KindString }
func (Bytes) Kind() Kind      { return KindBytes }
func (*Array) Kind() Kind     { return KindArray }
func (*Object) Kind() Kind    { return KindObject }
func (*Map) Kind() Kind       { return KindMap }
func (Ref) Kind() Kind        { return KindRef }
func (*Tagged) Kind() Kind    { return KindTagged }
func (Timestamp) Kind() Kind  { return KindTimestamp }
func (JSONNumber) Kind() Kind { return KindJSONNumber }

func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

func NewObject() *Object {
	return &Object{}
}

func NewMap() *Map {
	return &Map{}
}

func (m *Map) Append(key, val Value) {
	m.Entries = append(m.Entries, Entry{Key: key, Value: val})
}

// Equal reports deep structural equality. Float comparison is bit exact:
// +0.0 and -0.0 differ, NaN equals itself. Int and Uint values compare
// equal when both are non-negative and numerically equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ka, kb := a.Kind(), b.Kind(); ka != kb {
		if ka == KindInt && kb == KindUint {
			i, u := int64(a.(Int)), uint64(b.(Uint))
			return i >= 0 && uint64(i) == u
		}
		if ka == KindUint && kb == KindInt {
			u, i := uint64(a.(Uint)), int64(b.(Int))
			return i >= 0 && uint64(i) == u
		}
		return false
	}
	switch a := a.(type) {
	case Null:
		return true
	case Bool:
		return a == b.(Bool)
	case Int:
		return a == b.(Int)
	case Uint:
		return a == b.(Uint)
	case Float:
		return math.Float64bits(float64(a)) == math.Float64bits(float64(b.(Float)))
	case String:
		return a == b.(String)
	case Bytes:
		bb := b.(Bytes)
		if len(a) != len(bb) {
			return false
		}
		for i := range a {
			if a[i] != bb[i] {
				return false
			}
		}
		return true
	case *Array:
		bb := b.(*Array)
		if len(a.Elems) != len(bb.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], bb.Elems[i]) {
				return false
			}
		}
		return true
	case *Object:
		bb := b.(*Object)
		if a.Len() != bb.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			ak, av := a.At(i)
			bk, bv := bb.At(i)
			if ak != bk || !Equal(av, bv) {
				return false
			}
		}
		return true
	case *Map:
		bb := b.(*Map)
		if len(a.Entries) != len(bb.Entries) {
			return false
		}
		for i := range a.Entries {
			if !Equal(a.Entries[i].Key, bb.Entries[i].Key) ||
				!Equal(a.Entries[i].Value, bb.Entries[i].Value) {
				return false
			}
		}
		return true
	case Ref:
		return a == b.(Ref)
	case *Tagged:
		bb := b.(*Tagged)
		return a.Tag == bb.Tag && Equal(a.Value, bb.Value)
	case Timestamp:
		return a == b.(Timestamp)
	case JSONNumber:
		return a == b.(JSONNumber)
	}
	return false
}
