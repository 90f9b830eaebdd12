package jsonio

import (
	"strings"

	"github.com/tealdata/teal"
)

// inferSchemas promotes uniform arrays of objects to struct schemas so
// the binary writer can table-encode them. An array qualifies when it
// has at least two elements, every element is an object, and all
// elements share an identical key set. Field order follows the first
// element; a field that is null somewhere becomes nullable. The schema
// is named by singularizing and capitalizing the key the array sits
// under; a name already taken by a different layout leaves the array
// unpromoted.
func inferSchemas(doc *teal.Document) {
	for i := 0; i < doc.Len(); i++ {
		key, val := doc.At(i)
		inferValue(doc, key, val)
	}
}

func inferValue(doc *teal.Document, hint string, v teal.Value) {
	switch v := v.(type) {
	case *teal.Object:
		for i := 0; i < v.Len(); i++ {
			key, val := v.At(i)
			inferValue(doc, key, val)
		}
	case *teal.Array:
		elemHint := singularize(hint)
		for _, e := range v.Elems {
			inferValue(doc, elemHint, e)
		}
		promoteArray(doc, elemHint, v)
	}
}

func promoteArray(doc *teal.Document, name string, arr *teal.Array) {
	if len(arr.Elems) < 2 || name == "" {
		return
	}
	first, ok := arr.Elems[0].(*teal.Object)
	if !ok {
		return
	}
	keys := first.Keys()
	for _, e := range arr.Elems {
		obj, ok := e.(*teal.Object)
		if !ok || !sameKeySet(obj, keys) {
			return
		}
	}

	schema := teal.NewSchema(capitalize(name))
	for _, key := range keys {
		schema.AddField(key, inferFieldType(doc, arr, key))
	}
	if existing, taken := doc.Schema(schema.Name); taken {
		if !existing.SameLayout(schema) {
			return
		}
	}
	doc.DefineSchema(schema)
}

func sameKeySet(obj *teal.Object, keys []string) bool {
	if obj.Len() != len(keys) {
		return false
	}
	for _, key := range keys {
		if !obj.Has(key) {
			return false
		}
	}
	return true
}

// inferFieldType merges the kinds seen for one field across all rows.
func inferFieldType(doc *teal.Document, arr *teal.Array, key string) teal.FieldType {
	var ft teal.FieldType
	base := ""
	for _, e := range arr.Elems {
		v, _ := e.(*teal.Object).Get(key)
		if _, isNull := v.(teal.Null); isNull {
			ft.Nullable = true
			continue
		}
		base = mergeBase(base, baseFor(doc, v))
	}
	if base == "" {
		base = teal.TypeAny
		ft.Nullable = true
	}
	ft.Base = base
	return ft
}

func baseFor(doc *teal.Document, v teal.Value) string {
	switch v := v.(type) {
	case teal.Bool:
		return teal.TypeBool
	case teal.Int:
		return teal.TypeInt
	case teal.Uint:
		return teal.TypeUint
	case teal.Float:
		return teal.TypeFloat
	case teal.String:
		return teal.TypeString
	case *teal.Object:
		// A nested uniform array may already have produced a schema
		// this object conforms to.
		for _, s := range doc.Schemas() {
			if doc.ObjectMatchesSchema(v, s) {
				return s.Name
			}
		}
		return teal.TypeObject
	case *teal.Array:
		return teal.TypeAny
	}
	return teal.TypeAny
}

func mergeBase(a, b string) string {
	switch {
	case a == "" || a == b:
		return b
	case a == teal.TypeInt && b == teal.TypeFloat,
		a == teal.TypeFloat && b == teal.TypeInt:
		return teal.TypeFloat
	case a == teal.TypeInt && b == teal.TypeUint,
		a == teal.TypeUint && b == teal.TypeInt:
		return teal.TypeUint
	}
	return teal.TypeAny
}

// singularize applies the naming heuristic for inferred schemas:
// "entries" -> "entry", "users" -> "user".
func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses") && len(s) > 3:
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
