package text

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tealdata/teal"
)

// Formatter serializes a Document back to text. Union and schema
// declarations come first, then data entries, all in declaration order.
// Arrays whose elements uniformly match a registered schema are emitted
// in @table form.
type Formatter struct {
	doc     *teal.Document
	compact bool
	b       strings.Builder
}

// Format renders doc with spaces after separators.
func Format(doc *teal.Document) string {
	f := &Formatter{doc: doc}
	return f.format()
}

// FormatCompact renders doc without cosmetic whitespace.
func FormatCompact(doc *teal.Document) string {
	f := &Formatter{doc: doc, compact: true}
	return f.format()
}

func (f *Formatter) sep() string {
	if f.compact {
		return ","
	}
	return ", "
}

func (f *Formatter) colon() string {
	if f.compact {
		return ":"
	}
	return ": "
}

func (f *Formatter) format() string {
	for _, u := range f.doc.Unions() {
		f.b.WriteString("@union ")
		f.b.WriteString(u.Name)
		f.b.WriteString(" { ")
		for i, v := range u.Variants {
			if i > 0 {
				f.b.WriteString(f.sep())
			}
			f.b.WriteString(v)
		}
		f.b.WriteString(" }\n")
	}
	for _, s := range f.doc.Schemas() {
		f.b.WriteString("@struct ")
		f.b.WriteString(s.Name)
		f.b.WriteByte('(')
		for i, field := range s.Fields {
			if i > 0 {
				f.b.WriteString(f.sep())
			}
			f.b.WriteString(field.Name)
			f.b.WriteString(f.colon())
			f.b.WriteString(field.Type.String())
		}
		f.b.WriteString(")\n")
	}
	if f.doc.RootArray {
		f.b.WriteString("@root-array\n")
	}
	for i := 0; i < f.doc.Len(); i++ {
		key, val := f.doc.At(i)
		f.writeKey(key)
		f.b.WriteString(f.colon())
		f.writeValue(val)
		f.b.WriteByte('\n')
	}
	return f.b.String()
}

func (f *Formatter) writeKey(key string) {
	if strings.HasPrefix(key, "!") && !needsQuoting(key[1:]) {
		f.b.WriteString(key)
		return
	}
	if needsQuoting(key) {
		f.writeQuoted(key)
		return
	}
	f.b.WriteString(key)
}

func (f *Formatter) writeValue(v teal.Value) {
	switch v := v.(type) {
	case nil, teal.Null:
		f.b.WriteByte('~')
	case teal.Bool:
		if v {
			f.b.WriteString("true")
		} else {
			f.b.WriteString("false")
		}
	case teal.Int:
		f.b.WriteString(strconv.FormatInt(int64(v), 10))
	case teal.Uint:
		f.b.WriteString(strconv.FormatUint(uint64(v), 10))
	case teal.Float:
		f.b.WriteString(formatFloat(float64(v)))
	case teal.String:
		if needsQuoting(string(v)) {
			f.writeQuoted(string(v))
		} else {
			f.b.WriteString(string(v))
		}
	case teal.Bytes:
		f.b.WriteString("b\"")
		for _, c := range v {
			fmt.Fprintf(&f.b, "%02x", c)
		}
		f.b.WriteByte('"')
	case *teal.Array:
		if schema := f.doc.FindSchemaFor(v); schema != nil {
			f.writeTable(schema, v)
			return
		}
		f.b.WriteByte('[')
		for i, e := range v.Elems {
			if i > 0 {
				f.b.WriteString(f.sep())
			}
			f.writeValue(e)
		}
		f.b.WriteByte(']')
	case *teal.Object:
		f.b.WriteByte('{')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				f.b.WriteString(f.sep())
			}
			key, val := v.At(i)
			f.writeKey(key)
			f.b.WriteString(f.colon())
			f.writeValue(val)
		}
		f.b.WriteByte('}')
	case *teal.Map:
		if f.compact {
			f.b.WriteString("@map{")
		} else {
			f.b.WriteString("@map {")
		}
		for i, e := range v.Entries {
			if i > 0 {
				f.b.WriteString(f.sep())
			}
			f.writeMapKey(e.Key)
			f.b.WriteString(f.colon())
			f.writeValue(e.Value)
		}
		f.b.WriteByte('}')
	case teal.Ref:
		f.b.WriteByte('!')
		f.b.WriteString(string(v))
	case *teal.Tagged:
		f.b.WriteByte(':')
		f.b.WriteString(v.Tag)
		f.b.WriteByte(' ')
		f.writeValue(v.Value)
	case teal.Timestamp:
		f.b.WriteString(v.String())
	case teal.JSONNumber:
		f.b.WriteString(string(v))
	}
}

// Map keys are restricted to strings and integers in the grammar; any
// other programmatically built key is rendered as a quoted string.
func (f *Formatter) writeMapKey(key teal.Value) {
	switch key := key.(type) {
	case teal.String:
		if needsQuoting(string(key)) {
			f.writeQuoted(string(key))
		} else {
			f.b.WriteString(string(key))
		}
	case teal.Int:
		f.b.WriteString(strconv.FormatInt(int64(key), 10))
	case teal.Uint:
		f.b.WriteString(strconv.FormatUint(uint64(key), 10))
	default:
		sub := &Formatter{doc: f.doc, compact: true}
		sub.writeValue(key)
		f.writeQuoted(sub.b.String())
	}
}

func (f *Formatter) writeTable(schema *teal.Schema, arr *teal.Array) {
	f.b.WriteString("@table ")
	f.b.WriteString(schema.Name)
	f.b.WriteString(" [")
	for i, row := range arr.Elems {
		if i > 0 {
			f.b.WriteString(f.sep())
		}
		f.writeTuple(schema, row.(*teal.Object))
	}
	f.b.WriteByte(']')
}

// writeTuple emits one positional row; absent or null fields become '~'.
func (f *Formatter) writeTuple(schema *teal.Schema, obj *teal.Object) {
	f.b.WriteByte('(')
	for i, field := range schema.Fields {
		if i > 0 {
			f.b.WriteString(f.sep())
		}
		val, ok := obj.Get(field.Name)
		if !ok {
			f.b.WriteByte('~')
			continue
		}
		f.writeFieldValue(field.Type, val)
	}
	f.b.WriteByte(')')
}

func (f *Formatter) writeFieldValue(ft teal.FieldType, val teal.Value) {
	if _, isNull := val.(teal.Null); isNull {
		f.b.WriteByte('~')
		return
	}
	if ft.IsArray {
		if arr, ok := val.(*teal.Array); ok {
			elem := teal.FieldType{Base: ft.Base}
			f.b.WriteByte('[')
			for i, e := range arr.Elems {
				if i > 0 {
					f.b.WriteString(f.sep())
				}
				f.writeFieldValue(elem, e)
			}
			f.b.WriteByte(']')
			return
		}
	}
	if nested, ok := f.doc.Schema(ft.Base); ok && !ft.IsArray {
		if obj, isObj := val.(*teal.Object); isObj && f.doc.ObjectMatchesSchema(obj, nested) {
			f.writeTuple(nested, obj)
			return
		}
	}
	f.writeValue(val)
}

func (f *Formatter) writeQuoted(s string) {
	f.b.WriteByte('"')
	for _, c := range []byte(s) {
		switch c {
		case '\\':
			f.b.WriteString(`\\`)
		case '"':
			f.b.WriteString(`\"`)
		case '\n':
			f.b.WriteString(`\n`)
		case '\t':
			f.b.WriteString(`\t`)
		case '\r':
			f.b.WriteString(`\r`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&f.b, `\u%04x`, c)
			} else {
				f.b.WriteByte(c)
			}
		}
	}
	f.b.WriteByte('"')
}

// needsQuoting reports whether s can be written as a bare word and read
// back as the same string.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	switch s {
	case "true", "false", "null", "NaN", "inf":
		return true
	}
	if !isWordStart(s[0]) {
		return true
	}
	for i := 1; i < len(s); i++ {
		if !isWordChar(s[i]) {
			return true
		}
	}
	return false
}

// formatFloat keeps floats re-parseable as floats: integral values get a
// trailing ".0" and very long representations switch to scientific
// notation.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
