package binary

import (
	"bytes"
	"io"
	"math"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
	"github.com/tealdata/teal"
)

const valueCacheSize = 128

type sectionEntry struct {
	typ        uint8
	compressed bool
	keyIdx     uint32
	offset     uint64
	storedLen  uint32
	rawLen     uint32
}

// Reader decodes the binary form. The header, section table, and string
// table are parsed up front; schema metadata is decoded on first access
// and cached; each top-level key's data section is decoded on demand,
// with decoded values held in an LRU cache. A Reader is exclusively
// owned by one caller; it does no internal locking.
type Reader struct {
	data      []byte
	unmap     func() error
	rootArray bool

	sections []sectionEntry
	strings  []string
	keys     []string
	keyIndex map[string]int

	schemasLoaded bool
	schemas       []*teal.Schema
	schemaByName  map[string]*teal.Schema
	unions        []*teal.Union

	cache *lru.Cache[string, teal.Value]
}

// NewReader decodes the metadata of a binary blob held in memory. The
// reader keeps the slice; callers must not mutate it.
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{data: data}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

// Open reads the whole file into owned memory, so later changes to the
// file cannot affect the reader.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewReader(data)
}

// OpenMmap maps the file instead of copying it. The caller contract is
// that the file is not modified or truncated while the reader is alive;
// the library cannot enforce that. Concurrent read-only access through
// multiple readers of one file is safe.
func OpenMmap(path string) (*Reader, error) {
	data, unmap, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{data: data, unmap: unmap}
	if err := r.init(); err != nil {
		unmap()
		return nil, err
	}
	return r, nil
}

func (r *Reader) Close() error {
	if r.unmap != nil {
		err := r.unmap()
		r.unmap = nil
		return err
	}
	return nil
}

func (r *Reader) init() error {
	cache, err := lru.New[string, teal.Value](valueCacheSize)
	if err != nil {
		return err
	}
	r.cache = cache

	c := cursor{data: r.data}
	head, err := c.readN(4)
	if err != nil {
		return ErrTruncatedSection
	}
	if !bytes.Equal(head, magic[:]) {
		return ErrInvalidMagic
	}
	major, err := c.readU16()
	if err != nil {
		return ErrTruncatedSection
	}
	minor, err := c.readU16()
	if err != nil {
		return ErrTruncatedSection
	}
	if major != versionMajor {
		return &UnsupportedVersionError{Major: major, Minor: minor}
	}
	flags, err := c.readU32()
	if err != nil {
		return ErrTruncatedSection
	}
	r.rootArray = flags&flagRootArray != 0
	count, err := c.readU32()
	if err != nil {
		return ErrTruncatedSection
	}
	if count > maxSectionCount {
		return ErrTruncatedSection
	}
	r.sections = make([]sectionEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var s sectionEntry
		typ, err := c.readByte()
		if err != nil {
			return err
		}
		sflags, err := c.readByte()
		if err != nil {
			return err
		}
		if _, err := c.readU16(); err != nil { // pad
			return err
		}
		if s.keyIdx, err = c.readU32(); err != nil {
			return err
		}
		if s.offset, err = c.readU64(); err != nil {
			return err
		}
		if s.storedLen, err = c.readU32(); err != nil {
			return err
		}
		if s.rawLen, err = c.readU32(); err != nil {
			return err
		}
		s.typ = typ
		s.compressed = sflags&sectionFlagCompressed != 0
		if s.offset > uint64(len(r.data)) || uint64(s.storedLen) > uint64(len(r.data))-s.offset {
			return ErrTruncatedSection
		}
		r.sections = append(r.sections, s)
	}
	if err := r.loadStrings(); err != nil {
		return err
	}
	return r.indexKeys()
}

func (r *Reader) findSection(typ uint8) (sectionEntry, bool) {
	for _, s := range r.sections {
		if s.typ == typ {
			return s, true
		}
	}
	return sectionEntry{}, false
}

// sectionPayload returns a section's raw bytes, decompressing when the
// section flag says so. The decompressed size is bounded and must match
// the recorded raw length exactly.
func (r *Reader) sectionPayload(s sectionEntry) ([]byte, error) {
	stored := r.data[s.offset : s.offset+uint64(s.storedLen)]
	if !s.compressed {
		if uint32(len(stored)) != s.rawLen {
			return nil, ErrTruncatedSection
		}
		return stored, nil
	}
	if s.rawLen > maxDecompressedSize {
		return nil, &DecompressionError{Err: ErrTruncatedSection}
	}
	zr, err := zlib.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, &DecompressionError{Err: err}
	}
	defer zr.Close()
	raw := make([]byte, 0, s.rawLen)
	buf := bytes.NewBuffer(raw)
	n, err := io.Copy(buf, io.LimitReader(zr, int64(s.rawLen)+1))
	if err != nil {
		return nil, &DecompressionError{Err: err}
	}
	if n != int64(s.rawLen) {
		return nil, &DecompressionError{Err: ErrTruncatedSection}
	}
	return buf.Bytes(), nil
}

func (r *Reader) loadStrings() error {
	s, ok := r.findSection(sectionStrings)
	if !ok {
		return ErrMissingSection
	}
	payload, err := r.sectionPayload(s)
	if err != nil {
		return err
	}
	c := cursor{data: payload}
	count, err := c.readU32()
	if err != nil {
		return err
	}
	if count > maxCollectionSize {
		return ErrTruncatedSection
	}
	r.strings = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := c.readUvarint()
		if err != nil {
			return err
		}
		b, err := c.readN(int(n))
		if err != nil {
			return err
		}
		r.strings = append(r.strings, string(b))
	}
	return nil
}

func (r *Reader) string(idx uint32) (string, error) {
	if idx >= uint32(len(r.strings)) {
		return "", &StringIndexError{Index: idx, Count: uint32(len(r.strings))}
	}
	return r.strings[idx], nil
}

func (r *Reader) indexKeys() error {
	r.keyIndex = make(map[string]int)
	for i, s := range r.sections {
		if s.typ != sectionData {
			continue
		}
		key, err := r.string(s.keyIdx)
		if err != nil {
			return err
		}
		if _, dup := r.keyIndex[key]; !dup {
			r.keys = append(r.keys, key)
		}
		r.keyIndex[key] = i
	}
	return nil
}

// RootArray reports whether the document represents a top-level array.
func (r *Reader) RootArray() bool {
	return r.rootArray
}

// Keys returns the top-level keys in document order.
func (r *Reader) Keys() []string {
	return r.keys
}

func (r *Reader) Has(key string) bool {
	_, ok := r.keyIndex[key]
	return ok
}

// Get decodes and returns one top-level key's value. Only the requested
// key's section is decoded; results are cached.
func (r *Reader) Get(key string) (teal.Value, error) {
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}
	i, ok := r.keyIndex[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	payload, err := r.sectionPayload(r.sections[i])
	if err != nil {
		return nil, err
	}
	if err := r.loadSchemas(); err != nil {
		return nil, err
	}
	c := cursor{data: payload}
	v, err := r.decodeValue(&c, 1)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, v)
	return v, nil
}

// Schemas returns the schema definitions in emission (dependency) order.
func (r *Reader) Schemas() ([]*teal.Schema, error) {
	if err := r.loadSchemas(); err != nil {
		return nil, err
	}
	return r.schemas, nil
}

func (r *Reader) Schema(name string) (*teal.Schema, error) {
	if err := r.loadSchemas(); err != nil {
		return nil, err
	}
	return r.schemaByName[name], nil
}

// SchemaHasField reports whether a named schema declares a field.
func (r *Reader) SchemaHasField(schema, field string) (bool, error) {
	s, err := r.Schema(schema)
	if err != nil || s == nil {
		return false, err
	}
	return s.HasField(field), nil
}

func (r *Reader) Unions() ([]*teal.Union, error) {
	if err := r.loadSchemas(); err != nil {
		return nil, err
	}
	return r.unions, nil
}

// Document materializes the whole file back into a Document.
func (r *Reader) Document() (*teal.Document, error) {
	if err := r.loadSchemas(); err != nil {
		return nil, err
	}
	doc := teal.NewDocument()
	doc.RootArray = r.rootArray
	for _, s := range r.schemas {
		doc.DefineSchema(s)
	}
	for _, u := range r.unions {
		doc.DefineUnion(u)
	}
	for _, key := range r.keys {
		v, err := r.Get(key)
		if err != nil {
			return nil, err
		}
		doc.Set(key, v)
	}
	return doc, nil
}

func (r *Reader) loadSchemas() error {
	if r.schemasLoaded {
		return nil
	}
	s, ok := r.findSection(sectionSchemas)
	if !ok {
		return ErrMissingSection
	}
	payload, err := r.sectionPayload(s)
	if err != nil {
		return err
	}
	c := cursor{data: payload}
	structCount, err := c.readU16()
	if err != nil {
		return err
	}
	unionCount, err := c.readU16()
	if err != nil {
		return err
	}
	r.schemaByName = make(map[string]*teal.Schema)
	for i := uint16(0); i < structCount; i++ {
		nameIdx, err := c.readU32()
		if err != nil {
			return err
		}
		name, err := r.string(nameIdx)
		if err != nil {
			return err
		}
		fieldCount, err := c.readU16()
		if err != nil {
			return err
		}
		schema := teal.NewSchema(name)
		for j := uint16(0); j < fieldCount; j++ {
			fieldNameIdx, err := c.readU32()
			if err != nil {
				return err
			}
			fieldName, err := r.string(fieldNameIdx)
			if err != nil {
				return err
			}
			code, err := c.readByte()
			if err != nil {
				return err
			}
			flags, err := c.readByte()
			if err != nil {
				return err
			}
			extra, err := c.readU32()
			if err != nil {
				return err
			}
			base, err := r.fieldBase(code, extra)
			if err != nil {
				return err
			}
			schema.AddField(fieldName, teal.FieldType{
				Base:     base,
				Nullable: flags&fieldFlagNullable != 0,
				IsArray:  flags&fieldFlagArray != 0,
			})
		}
		r.schemas = append(r.schemas, schema)
		r.schemaByName[name] = schema
	}
	for i := uint16(0); i < unionCount; i++ {
		nameIdx, err := c.readU32()
		if err != nil {
			return err
		}
		name, err := r.string(nameIdx)
		if err != nil {
			return err
		}
		variantCount, err := c.readU16()
		if err != nil {
			return err
		}
		union := teal.NewUnion(name)
		for j := uint16(0); j < variantCount; j++ {
			vIdx, err := c.readU32()
			if err != nil {
				return err
			}
			variant, err := r.string(vIdx)
			if err != nil {
				return err
			}
			union.Variants = append(union.Variants, variant)
		}
		r.unions = append(r.unions, union)
	}
	r.schemasLoaded = true
	return nil
}

func (r *Reader) fieldBase(code uint8, extra uint32) (string, error) {
	switch code {
	case fieldString:
		return teal.TypeString, nil
	case fieldInt:
		return teal.TypeInt, nil
	case fieldUint:
		return teal.TypeUint, nil
	case fieldFloat:
		return teal.TypeFloat, nil
	case fieldBool:
		return teal.TypeBool, nil
	case fieldBytes:
		return teal.TypeBytes, nil
	case fieldTimestamp:
		return teal.TypeTimestamp, nil
	case fieldObject:
		return teal.TypeObject, nil
	case fieldMap:
		return teal.TypeMap, nil
	case fieldAny:
		return teal.TypeAny, nil
	case fieldNamed:
		return r.string(extra)
	}
	return "", ErrTruncatedSection
}

// decodeValue is the recursive heart of the reader. depth counts
// container nesting against the same ceiling the text parser uses, so a
// file that decodes also re-parses.
func (r *Reader) decodeValue(c *cursor, depth int) (teal.Value, error) {
	tag, err := c.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return teal.Null{}, nil
	case tagFalse:
		return teal.Bool(false), nil
	case tagTrue:
		return teal.Bool(true), nil
	case tagInt:
		v, err := c.readVarint()
		if err != nil {
			return nil, err
		}
		return teal.Int(v), nil
	case tagUint:
		v, err := c.readUvarint()
		if err != nil {
			return nil, err
		}
		return teal.Uint(v), nil
	case tagFloat:
		v, err := c.readU64()
		if err != nil {
			return nil, err
		}
		return teal.Float(math.Float64frombits(v)), nil
	case tagString:
		s, err := r.readStringIdx(c)
		if err != nil {
			return nil, err
		}
		return teal.String(s), nil
	case tagBytes:
		n, err := c.readUvarint()
		if err != nil {
			return nil, err
		}
		b, err := c.readN(int(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return teal.Bytes(out), nil
	case tagArray:
		return r.decodeArray(c, depth)
	case tagObject:
		return r.decodeObject(c, depth)
	case tagMap:
		return r.decodeMap(c, depth)
	case tagRef:
		s, err := r.readStringIdx(c)
		if err != nil {
			return nil, err
		}
		return teal.Ref(s), nil
	case tagTagged:
		if depth > teal.MaxNestingDepth {
			return nil, teal.ErrDepthExceeded
		}
		name, err := r.readStringIdx(c)
		if err != nil {
			return nil, err
		}
		inner, err := r.decodeValue(c, depth+1)
		if err != nil {
			return nil, err
		}
		return &teal.Tagged{Tag: name, Value: inner}, nil
	case tagTimestamp:
		return r.decodeTimestamp(c)
	case tagJSONNumber:
		s, err := r.readStringIdx(c)
		if err != nil {
			return nil, err
		}
		return teal.JSONNumber(s), nil
	case tagTable:
		return r.decodeStructArray(c, depth)
	}
	return nil, ErrTruncatedSection
}

func (r *Reader) readStringIdx(c *cursor) (string, error) {
	idx, err := c.readUvarint()
	if err != nil {
		return "", err
	}
	if idx > math.MaxUint32 {
		return "", &StringIndexError{Index: math.MaxUint32, Count: uint32(len(r.strings))}
	}
	return r.string(uint32(idx))
}

func (r *Reader) decodeTimestamp(c *cursor) (teal.Value, error) {
	ms, err := c.readU64()
	if err != nil {
		return nil, err
	}
	off, err := c.readU16()
	if err != nil {
		return nil, err
	}
	return teal.Timestamp{Millis: int64(ms), Offset: int16(off)}, nil
}

func (r *Reader) decodeArray(c *cursor, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, teal.ErrDepthExceeded
	}
	count, err := c.readCount()
	if err != nil {
		return nil, err
	}
	arr := teal.NewArray()
	for i := 0; i < count; i++ {
		elem, err := r.decodeValue(c, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, elem)
	}
	return arr, nil
}

func (r *Reader) decodeObject(c *cursor, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, teal.ErrDepthExceeded
	}
	count, err := c.readCount()
	if err != nil {
		return nil, err
	}
	obj := teal.NewObject()
	for i := 0; i < count; i++ {
		key, err := r.readStringIdx(c)
		if err != nil {
			return nil, err
		}
		val, err := r.decodeValue(c, depth+1)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	return obj, nil
}

func (r *Reader) decodeMap(c *cursor, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, teal.ErrDepthExceeded
	}
	count, err := c.readCount()
	if err != nil {
		return nil, err
	}
	m := teal.NewMap()
	for i := 0; i < count; i++ {
		key, err := r.decodeValue(c, depth+1)
		if err != nil {
			return nil, err
		}
		val, err := r.decodeValue(c, depth+1)
		if err != nil {
			return nil, err
		}
		m.Append(key, val)
	}
	return m, nil
}

// decodeStructArray reconstructs a packed table as an array of objects
// with fields in schema order.
func (r *Reader) decodeStructArray(c *cursor, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, teal.ErrDepthExceeded
	}
	schemaIdx, err := c.readUvarint()
	if err != nil {
		return nil, err
	}
	if schemaIdx >= uint64(len(r.schemas)) {
		return nil, &SchemaIndexError{Index: uint32(schemaIdx), Count: uint32(len(r.schemas))}
	}
	schema := r.schemas[schemaIdx]
	count, err := c.readCount()
	if err != nil {
		return nil, err
	}
	arr := teal.NewArray()
	for i := 0; i < count; i++ {
		row, err := r.decodeStruct(c, schema, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, row)
	}
	return arr, nil
}

func (r *Reader) decodeStruct(c *cursor, schema *teal.Schema, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, teal.ErrDepthExceeded
	}
	bitmap, err := c.readN((len(schema.Fields)*2 + 7) / 8)
	if err != nil {
		return nil, err
	}
	obj := teal.NewObject()
	for i, f := range schema.Fields {
		code := bitmap[i/4] >> uint((i%4)*2) & 0x3
		switch code {
		case rowAbsent:
			continue
		case rowNull:
			obj.Set(f.Name, teal.Null{})
		case rowValue:
			v, err := r.decodeFieldValue(c, f.Type, depth)
			if err != nil {
				return nil, err
			}
			obj.Set(f.Name, v)
		default:
			return nil, ErrTruncatedSection
		}
	}
	return obj, nil
}

func (r *Reader) decodeFieldValue(c *cursor, ft teal.FieldType, depth int) (teal.Value, error) {
	if ft.IsArray {
		return r.decodeValue(c, depth+1)
	}
	switch ft.Base {
	case teal.TypeString:
		s, err := r.readStringIdx(c)
		if err != nil {
			return nil, err
		}
		return teal.String(s), nil
	case teal.TypeInt:
		v, err := c.readVarint()
		if err != nil {
			return nil, err
		}
		return teal.Int(v), nil
	case teal.TypeUint:
		v, err := c.readUvarint()
		if err != nil {
			return nil, err
		}
		return teal.Uint(v), nil
	case teal.TypeFloat:
		v, err := c.readU64()
		if err != nil {
			return nil, err
		}
		return teal.Float(math.Float64frombits(v)), nil
	case teal.TypeBool:
		b, err := c.readByte()
		if err != nil {
			return nil, err
		}
		return teal.Bool(b != 0), nil
	case teal.TypeBytes:
		n, err := c.readUvarint()
		if err != nil {
			return nil, err
		}
		b, err := c.readN(int(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return teal.Bytes(out), nil
	case teal.TypeTimestamp:
		return r.decodeTimestamp(c)
	}
	return r.decodeValue(c, depth+1)
}
