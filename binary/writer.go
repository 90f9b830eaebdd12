package binary

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zlib"
	"github.com/tealdata/teal"
	"go.uber.org/multierr"
)

// Writer compiles documents to the binary form. Storage failures from
// the underlying writer surface unmodified; there are no retries.
type Writer struct {
	bw     *bufio.Writer
	closer io.Closer
}

func NewWriter(w io.Writer) *Writer {
	zw := &Writer{bw: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		zw.closer = c
	}
	return zw
}

func (w *Writer) Write(doc *teal.Document) error {
	b, err := Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.bw.Write(b)
	return err
}

func (w *Writer) Close() error {
	err := w.bw.Flush()
	if w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}
	return err
}

// Marshal compiles doc into a self-contained binary blob.
func Marshal(doc *teal.Document) ([]byte, error) {
	e := newEncoder(doc)
	return e.encode()
}

func WriteFile(path string, doc *teal.Document) error {
	b, err := Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

type section struct {
	typ    uint8
	keyIdx uint32
	raw    []byte
}

// encoder assembles the string table, schema section, and one data
// section per top-level key, then lays them out behind the header and
// section table. The interning and emitted-schema indexes are plain
// maps; only their contents matter, never their iteration order.
type encoder struct {
	doc       *teal.Document
	strings   []string
	stringIDs map[string]uint32
	schemaIDs map[string]uint32
	schemas   []*teal.Schema
}

func newEncoder(doc *teal.Document) *encoder {
	return &encoder{
		doc:       doc,
		stringIDs: make(map[string]uint32),
		schemaIDs: make(map[string]uint32),
	}
}

func (e *encoder) intern(s string) uint32 {
	if id, ok := e.stringIDs[s]; ok {
		return id
	}
	id := uint32(len(e.strings))
	e.strings = append(e.strings, s)
	e.stringIDs[s] = id
	return id
}

func (e *encoder) encode() ([]byte, error) {
	if err := e.orderSchemas(); err != nil {
		return nil, err
	}

	var sections []section
	schemaPayload := e.encodeSchemas()

	var dataSections []section
	for i := 0; i < e.doc.Len(); i++ {
		key, val := e.doc.At(i)
		var buf bytes.Buffer
		if err := e.encodeValue(&buf, val, 1); err != nil {
			return nil, err
		}
		dataSections = append(dataSections, section{
			typ:    sectionData,
			keyIdx: e.intern(key),
			raw:    buf.Bytes(),
		})
	}

	// The string table is encoded last (interning is complete) but laid
	// out first so the reader can resolve keys immediately.
	sections = append(sections, section{typ: sectionStrings, keyIdx: noIndex, raw: e.encodeStrings()})
	sections = append(sections, section{typ: sectionSchemas, keyIdx: noIndex, raw: schemaPayload})
	sections = append(sections, dataSections...)

	var out bytes.Buffer
	out.Write(magic[:])
	writeU16(&out, versionMajor)
	writeU16(&out, versionMinor)
	var flags uint32
	if e.doc.RootArray {
		flags |= flagRootArray
	}
	writeU32(&out, flags)
	writeU32(&out, uint32(len(sections)))

	type laid struct {
		stored     []byte
		compressed bool
	}
	laidOut := make([]laid, len(sections))
	offset := uint64(headerSize + sectionEntrySize*len(sections))
	for i, s := range sections {
		stored, compressed := compressSection(s.raw)
		laidOut[i] = laid{stored: stored, compressed: compressed}
	}
	for i, s := range sections {
		var sflags uint8
		if laidOut[i].compressed {
			sflags |= sectionFlagCompressed
		}
		out.WriteByte(s.typ)
		out.WriteByte(sflags)
		writeU16(&out, 0)
		writeU32(&out, s.keyIdx)
		writeU64(&out, offset)
		writeU32(&out, uint32(len(laidOut[i].stored)))
		writeU32(&out, uint32(len(s.raw)))
		offset += uint64(len(laidOut[i].stored))
	}
	for i := range sections {
		out.Write(laidOut[i].stored)
	}
	return out.Bytes(), nil
}

// compressSection applies the fixed zlib codec when the payload is large
// enough and compression actually pays for itself.
func compressSection(raw []byte) ([]byte, bool) {
	if len(raw) < compressMinSize {
		return raw, false
	}
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	if _, err := zw.Write(raw); err != nil {
		return raw, false
	}
	if err := zw.Close(); err != nil {
		return raw, false
	}
	if b.Len()*10 >= len(raw)*9 {
		return raw, false
	}
	return b.Bytes(), true
}

// orderSchemas produces a dependency ordering: a schema whose field
// references another schema is emitted after its dependency, so a
// streaming decoder never sees a forward reference. Declaration rules
// already forbid forward references, but programmatically built
// documents are walked defensively and a cycle is an error.
func (e *encoder) orderSchemas() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var visit func(s *teal.Schema) error
	visit = func(s *teal.Schema) error {
		switch state[s.Name] {
		case done:
			return nil
		case visiting:
			return ErrSchemaCycle
		}
		state[s.Name] = visiting
		for _, f := range s.Fields {
			if dep, ok := e.doc.Schema(f.Type.Base); ok && dep.Name != s.Name {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[s.Name] = done
		e.schemaIDs[s.Name] = uint32(len(e.schemas))
		e.schemas = append(e.schemas, s)
		return nil
	}
	for _, s := range e.doc.Schemas() {
		if err := visit(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeStrings() []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(len(e.strings)))
	for _, s := range e.strings {
		writeUvarint(&buf, uint64(len(s)))
		buf.WriteString(s)
	}
	return buf.Bytes()
}

func (e *encoder) encodeSchemas() []byte {
	var buf bytes.Buffer
	unions := e.doc.Unions()
	writeU16(&buf, uint16(len(e.schemas)))
	writeU16(&buf, uint16(len(unions)))
	for _, s := range e.schemas {
		writeU32(&buf, e.intern(s.Name))
		writeU16(&buf, uint16(len(s.Fields)))
		for _, f := range s.Fields {
			code, extra := e.fieldTypeCode(f.Type)
			writeU32(&buf, e.intern(f.Name))
			buf.WriteByte(code)
			var flags uint8
			if f.Type.Nullable {
				flags |= fieldFlagNullable
			}
			if f.Type.IsArray {
				flags |= fieldFlagArray
			}
			buf.WriteByte(flags)
			writeU32(&buf, extra)
		}
	}
	for _, u := range unions {
		writeU32(&buf, e.intern(u.Name))
		writeU16(&buf, uint16(len(u.Variants)))
		for _, v := range u.Variants {
			writeU32(&buf, e.intern(v))
		}
	}
	return buf.Bytes()
}

func (e *encoder) fieldTypeCode(ft teal.FieldType) (uint8, uint32) {
	switch ft.Base {
	case teal.TypeString:
		return fieldString, noIndex
	case teal.TypeInt:
		return fieldInt, noIndex
	case teal.TypeUint:
		return fieldUint, noIndex
	case teal.TypeFloat:
		return fieldFloat, noIndex
	case teal.TypeBool:
		return fieldBool, noIndex
	case teal.TypeBytes:
		return fieldBytes, noIndex
	case teal.TypeTimestamp:
		return fieldTimestamp, noIndex
	case teal.TypeObject:
		return fieldObject, noIndex
	case teal.TypeMap:
		return fieldMap, noIndex
	case teal.TypeAny:
		return fieldAny, noIndex
	}
	return fieldNamed, e.intern(ft.Base)
}

// encodeValue writes one tagged value. depth is the container nesting
// level, checked against the same ceiling the parser enforces so a
// document that compiles also parses.
func (e *encoder) encodeValue(buf *bytes.Buffer, v teal.Value, depth int) error {
	switch v := v.(type) {
	case nil, teal.Null:
		buf.WriteByte(tagNull)
	case teal.Bool:
		if v {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case teal.Int:
		buf.WriteByte(tagInt)
		writeVarint(buf, int64(v))
	case teal.Uint:
		buf.WriteByte(tagUint)
		writeUvarint(buf, uint64(v))
	case teal.Float:
		buf.WriteByte(tagFloat)
		writeU64(buf, math.Float64bits(float64(v)))
	case teal.String:
		buf.WriteByte(tagString)
		writeUvarint(buf, uint64(e.intern(string(v))))
	case teal.Bytes:
		buf.WriteByte(tagBytes)
		writeUvarint(buf, uint64(len(v)))
		buf.Write(v)
	case *teal.Array:
		if depth > teal.MaxNestingDepth {
			return teal.ErrDepthExceeded
		}
		if schema := e.doc.FindSchemaFor(v); schema != nil {
			return e.encodeTable(buf, schema, v, depth)
		}
		buf.WriteByte(tagArray)
		writeUvarint(buf, uint64(len(v.Elems)))
		for _, elem := range v.Elems {
			if err := e.encodeValue(buf, elem, depth+1); err != nil {
				return err
			}
		}
	case *teal.Object:
		if depth > teal.MaxNestingDepth {
			return teal.ErrDepthExceeded
		}
		buf.WriteByte(tagObject)
		writeUvarint(buf, uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			key, val := v.At(i)
			writeUvarint(buf, uint64(e.intern(key)))
			if err := e.encodeValue(buf, val, depth+1); err != nil {
				return err
			}
		}
	case *teal.Map:
		if depth > teal.MaxNestingDepth {
			return teal.ErrDepthExceeded
		}
		buf.WriteByte(tagMap)
		writeUvarint(buf, uint64(len(v.Entries)))
		for _, entry := range v.Entries {
			if err := e.encodeValue(buf, entry.Key, depth+1); err != nil {
				return err
			}
			if err := e.encodeValue(buf, entry.Value, depth+1); err != nil {
				return err
			}
		}
	case teal.Ref:
		buf.WriteByte(tagRef)
		writeUvarint(buf, uint64(e.intern(string(v))))
	case *teal.Tagged:
		if depth > teal.MaxNestingDepth {
			return teal.ErrDepthExceeded
		}
		buf.WriteByte(tagTagged)
		writeUvarint(buf, uint64(e.intern(v.Tag)))
		if err := e.encodeValue(buf, v.Value, depth+1); err != nil {
			return err
		}
	case teal.Timestamp:
		buf.WriteByte(tagTimestamp)
		writeU64(buf, uint64(v.Millis))
		writeU16(buf, uint16(v.Offset))
	case teal.JSONNumber:
		buf.WriteByte(tagJSONNumber)
		writeUvarint(buf, uint64(e.intern(string(v))))
	}
	return nil
}

// encodeTable packs a uniform array of one schema's instances as
// positional rows, referencing the schema once instead of re-tagging
// every field.
func (e *encoder) encodeTable(buf *bytes.Buffer, schema *teal.Schema, arr *teal.Array, depth int) error {
	buf.WriteByte(tagTable)
	writeUvarint(buf, uint64(e.schemaIDs[schema.Name]))
	writeUvarint(buf, uint64(len(arr.Elems)))
	for _, row := range arr.Elems {
		if err := e.encodeRow(buf, schema, row.(*teal.Object), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeRow(buf *bytes.Buffer, schema *teal.Schema, obj *teal.Object, depth int) error {
	if depth > teal.MaxNestingDepth {
		return teal.ErrDepthExceeded
	}
	// Presence map, two bits per field. Explicit null on a nullable
	// field normalizes to absent, mirroring the text form where '~'
	// against a nullable field omits it.
	codes := make([]uint8, len(schema.Fields))
	for i, f := range schema.Fields {
		v, ok := obj.Get(f.Name)
		_, isNull := v.(teal.Null)
		switch {
		case !ok, isNull && f.Type.Nullable:
			codes[i] = rowAbsent
		case isNull:
			codes[i] = rowNull
		default:
			codes[i] = rowValue
		}
	}
	bitmap := make([]byte, (len(codes)*2+7)/8)
	for i, code := range codes {
		bitmap[i/4] |= code << uint((i%4)*2)
	}
	buf.Write(bitmap)
	for i, f := range schema.Fields {
		if codes[i] != rowValue {
			continue
		}
		v, _ := obj.Get(f.Name)
		if err := e.encodeFieldValue(buf, f.Type, v, depth); err != nil {
			return err
		}
	}
	return nil
}

// encodeFieldValue writes a field whose type the schema already pins
// down: primitives go untagged, everything else falls back to the tagged
// encoding.
func (e *encoder) encodeFieldValue(buf *bytes.Buffer, ft teal.FieldType, v teal.Value, depth int) error {
	if ft.IsArray {
		return e.encodeValue(buf, v, depth+1)
	}
	switch ft.Base {
	case teal.TypeString:
		writeUvarint(buf, uint64(e.intern(string(v.(teal.String)))))
	case teal.TypeInt:
		writeVarint(buf, int64(v.(teal.Int)))
	case teal.TypeUint:
		if i, ok := v.(teal.Int); ok {
			writeUvarint(buf, uint64(i))
		} else {
			writeUvarint(buf, uint64(v.(teal.Uint)))
		}
	case teal.TypeFloat:
		writeU64(buf, math.Float64bits(float64(v.(teal.Float))))
	case teal.TypeBool:
		if v.(teal.Bool) {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case teal.TypeBytes:
		b := v.(teal.Bytes)
		writeUvarint(buf, uint64(len(b)))
		buf.Write(b)
	case teal.TypeTimestamp:
		ts := v.(teal.Timestamp)
		writeU64(buf, uint64(ts.Millis))
		writeU16(buf, uint16(ts.Offset))
	default:
		return e.encodeValue(buf, v, depth+1)
	}
	return nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	buf.Write(b[:n])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutVarint(b[:], v)
	buf.Write(b[:n])
}
