// Package jsonio bridges documents to and from JSON. Export uses fixed,
// non-configurable encodings for the variants JSON cannot express;
// import is deliberately conservative and never infers those encodings
// back. Both directions preserve key order.
package jsonio

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tealdata/teal"
)

// Export renders the document's data entries as compact JSON. Schemas
// and unions are structural metadata and do not appear; a root-array
// document becomes a JSON array.
func Export(doc *teal.Document) ([]byte, error) {
	w := &writer{}
	w.writeDocument(doc)
	return w.b.Bytes(), nil
}

// ExportPretty is Export with two-space indentation.
func ExportPretty(doc *teal.Document) ([]byte, error) {
	w := &writer{pretty: true}
	w.writeDocument(doc)
	return w.b.Bytes(), nil
}

// writer emits JSON by hand rather than through a map marshal, which is
// what keeps object keys in insertion order.
type writer struct {
	b      bytes.Buffer
	pretty bool
	indent int
}

func (w *writer) newline() {
	if !w.pretty {
		return
	}
	w.b.WriteByte('\n')
	w.b.WriteString(strings.Repeat("  ", w.indent))
}

func (w *writer) writeDocument(doc *teal.Document) {
	if doc.RootArray {
		arr := teal.NewArray()
		for i := 0; i < doc.Len(); i++ {
			_, v := doc.At(i)
			arr.Elems = append(arr.Elems, v)
		}
		w.writeValue(arr)
		return
	}
	w.b.WriteByte('{')
	w.indent++
	for i := 0; i < doc.Len(); i++ {
		if i > 0 {
			w.b.WriteByte(',')
		}
		w.newline()
		key, val := doc.At(i)
		w.writeString(key)
		w.colon()
		w.writeValue(val)
	}
	w.indent--
	if doc.Len() > 0 {
		w.newline()
	}
	w.b.WriteByte('}')
}

func (w *writer) colon() {
	w.b.WriteByte(':')
	if w.pretty {
		w.b.WriteByte(' ')
	}
}

func (w *writer) writeString(s string) {
	b, _ := json.Marshal(s)
	w.b.Write(b)
}

func (w *writer) writeValue(v teal.Value) {
	switch v := v.(type) {
	case nil, teal.Null:
		w.b.WriteString("null")
	case teal.Bool:
		if v {
			w.b.WriteString("true")
		} else {
			w.b.WriteString("false")
		}
	case teal.Int:
		w.b.WriteString(strconv.FormatInt(int64(v), 10))
	case teal.Uint:
		w.b.WriteString(strconv.FormatUint(uint64(v), 10))
	case teal.Float:
		f := float64(v)
		// JSON has no NaN or infinity.
		if math.IsNaN(f) || math.IsInf(f, 0) {
			w.b.WriteString("null")
			return
		}
		w.b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case teal.String:
		w.writeString(string(v))
	case teal.Bytes:
		w.writeString("0x" + hex.EncodeToString(v))
	case *teal.Array:
		w.b.WriteByte('[')
		w.indent++
		for i, e := range v.Elems {
			if i > 0 {
				w.b.WriteByte(',')
			}
			w.newline()
			w.writeValue(e)
		}
		w.indent--
		if len(v.Elems) > 0 {
			w.newline()
		}
		w.b.WriteByte(']')
	case *teal.Object:
		w.b.WriteByte('{')
		w.indent++
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				w.b.WriteByte(',')
			}
			w.newline()
			key, val := v.At(i)
			w.writeString(key)
			w.colon()
			w.writeValue(val)
		}
		w.indent--
		if v.Len() > 0 {
			w.newline()
		}
		w.b.WriteByte('}')
	case *teal.Map:
		// Map keys need not be strings, so a map becomes an array of
		// [key, value] pairs.
		w.b.WriteByte('[')
		for i, e := range v.Entries {
			if i > 0 {
				w.b.WriteByte(',')
			}
			w.b.WriteByte('[')
			w.writeValue(e.Key)
			w.b.WriteByte(',')
			w.writeValue(e.Value)
			w.b.WriteByte(']')
		}
		w.b.WriteByte(']')
	case teal.Ref:
		w.b.WriteString(`{"$ref":`)
		w.writeString(string(v))
		w.b.WriteByte('}')
	case *teal.Tagged:
		w.b.WriteString(`{"$tag":`)
		w.writeString(v.Tag)
		w.b.WriteString(`,"$value":`)
		w.writeValue(v.Value)
		w.b.WriteByte('}')
	case teal.Timestamp:
		// Fixed form: UTC instant, millisecond precision, literal Z.
		t := time.UnixMilli(v.Millis).UTC()
		w.writeString(t.Format("2006-01-02T15:04:05.000") + "Z")
	case teal.JSONNumber:
		w.b.WriteString(string(v))
	}
}
