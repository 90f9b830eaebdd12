package jsonio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tealdata/teal"
)

// Import parses JSON into a Document. A top-level object's keys become
// the document entries; a top-level array becomes a root-array document
// with ordinal keys; any other top-level value lands under "value".
//
// Import never reverses the export encodings: {"$ref": ...} stays an
// Object, hex-looking strings stay strings, arrays of pairs stay
// arrays. Uniform arrays of objects sharing an identical field set are
// promoted to an inferred schema so writers can table-encode them.
func Import(data []byte) (*teal.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := importValue(dec, 1)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}

	doc := teal.NewDocument()
	switch v := v.(type) {
	case *teal.Object:
		for i := 0; i < v.Len(); i++ {
			key, val := v.At(i)
			doc.Set(key, val)
		}
	case *teal.Array:
		doc.RootArray = true
		for i, e := range v.Elems {
			doc.Set(strconv.Itoa(i), e)
		}
	default:
		doc.Set("value", v)
	}
	inferSchemas(doc)
	return doc, nil
}

// importValue walks the decoder's token stream directly, which is what
// preserves object key order and the verbatim text of numbers.
func importValue(dec *json.Decoder, depth int) (teal.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return importToken(dec, tok, depth)
}

func importToken(dec *json.Decoder, tok json.Token, depth int) (teal.Value, error) {
	switch tok := tok.(type) {
	case nil:
		return teal.Null{}, nil
	case bool:
		return teal.Bool(tok), nil
	case string:
		return teal.String(tok), nil
	case json.Number:
		return importNumber(tok), nil
	case json.Delim:
		switch tok {
		case '{':
			if depth > teal.MaxNestingDepth {
				return nil, teal.ErrDepthExceeded
			}
			obj := teal.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := importValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			if depth > teal.MaxNestingDepth {
				return nil, teal.ErrDepthExceeded
			}
			arr := teal.NewArray()
			for dec.More() {
				elem, err := importValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				arr.Elems = append(arr.Elems, elem)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

// importNumber classes a numeric literal: integral text that fits a
// signed 64-bit becomes Int, then unsigned, then the verbatim text is
// kept; fractional text becomes Float when float64 can hold it at all.
func importNumber(n json.Number) teal.Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return teal.Int(i)
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return teal.Uint(u)
		}
		return teal.JSONNumber(s)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return teal.Float(f)
	}
	return teal.JSONNumber(s)
}
