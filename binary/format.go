// Package binary implements the compact teal representation: a
// section-based layout with a deduplicated string table, schema
// definitions emitted in dependency order, packed struct-array encoding
// for uniform rows, and per-section zlib compression. The reader
// supports buffered and memory-mapped acquisition and decodes top-level
// keys lazily.
package binary

// File layout: header, section table, then the sections themselves. All
// integers are little-endian.
const (
	headerSize       = 16
	sectionEntrySize = 24

	versionMajor = 1
	versionMinor = 0
)

var magic = [4]byte{'T', 'E', 'A', 'L'}

// Header flags.
const flagRootArray = 1 << 0

// Section types.
const (
	sectionStrings = 0
	sectionSchemas = 1
	sectionData    = 2
)

// Section flags.
const sectionFlagCompressed = 1 << 0

// noIndex marks a section-table key slot with no key (the string and
// schema sections).
const noIndex = 0xFFFFFFFF

// Value tags in data sections.
const (
	tagNull       = 0
	tagFalse      = 1
	tagTrue       = 2
	tagInt        = 3
	tagUint       = 4
	tagFloat      = 5
	tagString     = 6
	tagBytes      = 7
	tagArray      = 8
	tagObject     = 9
	tagMap        = 10
	tagRef        = 11
	tagTagged     = 12
	tagTimestamp  = 13
	tagJSONNumber = 14
	tagTable      = 15
)

// Field type codes in the schema section.
const (
	fieldString    = 0
	fieldInt       = 1
	fieldUint      = 2
	fieldFloat     = 3
	fieldBool      = 4
	fieldBytes     = 5
	fieldTimestamp = 6
	fieldObject    = 7
	fieldMap       = 8
	fieldAny       = 9
	fieldNamed     = 10
)

// Field flags.
const (
	fieldFlagNullable = 1 << 0
	fieldFlagArray    = 1 << 1
)

// Row presence codes, two bits per field, packed LSB-first.
const (
	rowValue  = 0
	rowNull   = 1
	rowAbsent = 2
)

// Compression gate: only sections of at least compressMinSize bytes are
// candidates, and the compressed form is kept only when smaller than 90%
// of the raw size.
const compressMinSize = 64

// Decoder hardening limits.
const (
	maxSectionCount     = 1 << 20
	maxCollectionSize   = 1 << 20
	maxDecompressedSize = 256 << 20
	maxVarintLen        = 10
)
