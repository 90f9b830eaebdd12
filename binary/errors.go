package binary

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMagic     = errors.New("invalid magic bytes")
	ErrTruncatedSection = errors.New("truncated section")
	ErrKeyNotFound      = errors.New("key not found")
	ErrSchemaCycle      = errors.New("schema dependency cycle")
	ErrMissingSection   = errors.New("required section missing")
)

type UnsupportedVersionError struct {
	Major uint16
	Minor uint16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported format version %d.%d", e.Major, e.Minor)
}

type StringIndexError struct {
	Index uint32
	Count uint32
}

func (e *StringIndexError) Error() string {
	return fmt.Sprintf("string index %d out of range (table has %d entries)", e.Index, e.Count)
}

type SchemaIndexError struct {
	Index uint32
	Count uint32
}

func (e *SchemaIndexError) Error() string {
	return fmt.Sprintf("schema index %d out of range (%d schemas)", e.Index, e.Count)
}

type DecompressionError struct {
	Err error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("section decompression failed: %s", e.Err)
}

func (e *DecompressionError) Unwrap() error {
	return e.Err
}
