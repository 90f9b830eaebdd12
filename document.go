package teal

import (
	"strconv"
	"strings"

	"github.com/tealdata/teal/pkg/ordmap"
)

// Document is the top-level container: schema and union registries plus
// the keyed data entries, each in insertion order. A Document has one
// exclusive owner at a time; it is built once by a parser or decoder and
// then written out or discarded.
type Document struct {
	// RootArray marks a document that represents a top-level JSON
	// array rather than an object.
	RootArray bool

	schemas ordmap.Map[*Schema]
	unions  ordmap.Map[*Union]
	data    ordmap.Map[Value]
}

func NewDocument() *Document {
	return &Document{}
}

func (d *Document) DefineSchema(s *Schema) {
	d.schemas.Set(s.Name, s)
}

func (d *Document) Schema(name string) (*Schema, bool) {
	return d.schemas.Get(name)
}

// SchemaNames returns registered schema names in declaration order.
func (d *Document) SchemaNames() []string {
	return d.schemas.Keys()
}

func (d *Document) Schemas() []*Schema {
	return d.schemas.Values()
}

func (d *Document) DefineUnion(u *Union) {
	d.unions.Set(u.Name, u)
}

func (d *Document) Union(name string) (*Union, bool) {
	return d.unions.Get(name)
}

func (d *Document) UnionNames() []string {
	return d.unions.Keys()
}

func (d *Document) Unions() []*Union {
	return d.unions.Values()
}

// HasType reports whether name is a registered schema or union.
func (d *Document) HasType(name string) bool {
	return d.schemas.Has(name) || d.unions.Has(name)
}

// Set stores a top-level entry. An existing key keeps its position (last
// write wins).
func (d *Document) Set(key string, val Value) {
	d.data.Set(key, val)
}

func (d *Document) Get(key string) (Value, bool) {
	return d.data.Get(key)
}

func (d *Document) Delete(key string) bool {
	return d.data.Delete(key)
}

// Keys returns the top-level keys in insertion order.
func (d *Document) Keys() []string {
	return d.data.Keys()
}

func (d *Document) Len() int {
	return d.data.Len()
}

func (d *Document) At(i int) (string, Value) {
	return d.data.At(i)
}

// GetPath resolves a dotted path like "users.0.name" against the data
// entries: object segments select by key, array segments by decimal
// index, map segments by string key.
func (d *Document) GetPath(path string) (Value, bool) {
	segs := strings.Split(path, ".")
	val, ok := d.data.Get(segs[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segs[1:] {
		switch v := val.(type) {
		case *Object:
			val, ok = v.Get(seg)
			if !ok {
				return nil, false
			}
		case *Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v.Elems) {
				return nil, false
			}
			val = v.Elems[i]
		case *Map:
			found := false
			for _, e := range v.Entries {
				if s, ok := e.Key.(String); ok && string(s) == seg {
					val = e.Value
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return val, true
}

// FindSchemaFor returns the first registered schema, in declaration
// order, whose layout every element of arr conforms to, or nil if the
// array is empty, mixed, or matches no schema.
func (d *Document) FindSchemaFor(arr *Array) *Schema {
	if len(arr.Elems) == 0 {
		return nil
	}
	for _, e := range arr.Elems {
		if _, ok := e.(*Object); !ok {
			return nil
		}
	}
	for _, s := range d.schemas.Values() {
		ok := true
		for _, e := range arr.Elems {
			if !d.ObjectMatchesSchema(e.(*Object), s) {
				ok = false
				break
			}
		}
		if ok {
			return s
		}
	}
	return nil
}

// ObjectMatchesSchema reports whether obj conforms to s: every
// non-nullable field is present, no keys fall outside the schema, and
// every present value is compatible with its field's declared type.
func (d *Document) ObjectMatchesSchema(obj *Object, s *Schema) bool {
	for i := 0; i < obj.Len(); i++ {
		key, _ := obj.At(i)
		if !s.HasField(key) {
			return false
		}
	}
	for _, f := range s.Fields {
		v, ok := obj.Get(f.Name)
		if !ok {
			if !f.Type.Nullable {
				return false
			}
			continue
		}
		if !d.valueMatchesType(v, f.Type) {
			return false
		}
	}
	return true
}

func (d *Document) valueMatchesType(v Value, ft FieldType) bool {
	if _, ok := v.(Null); ok {
		return ft.Nullable
	}
	if ft.IsArray {
		arr, ok := v.(*Array)
		if !ok {
			return false
		}
		elem := FieldType{Base: ft.Base}
		for _, e := range arr.Elems {
			if _, ok := e.(Null); ok {
				continue
			}
			if !d.valueMatchesType(e, elem) {
				return false
			}
		}
		return true
	}
	switch ft.Base {
	case TypeString:
		return v.Kind() == KindString
	case TypeInt:
		return v.Kind() == KindInt
	case TypeUint:
		k := v.Kind()
		if k == KindUint {
			return true
		}
		return k == KindInt && int64(v.(Int)) >= 0
	case TypeFloat:
		return v.Kind() == KindFloat
	case TypeBool:
		return v.Kind() == KindBool
	case TypeBytes:
		return v.Kind() == KindBytes
	case TypeTimestamp:
		return v.Kind() == KindTimestamp
	case TypeMap:
		return v.Kind() == KindMap
	case TypeObject, TypeAny:
		return true
	}
	if s, ok := d.schemas.Get(ft.Base); ok {
		obj, isObj := v.(*Object)
		return isObj && d.ObjectMatchesSchema(obj, s)
	}
	if u, ok := d.unions.Get(ft.Base); ok {
		t, isTagged := v.(*Tagged)
		return isTagged && u.HasVariant(t.Tag)
	}
	return false
}
