package binary

import "encoding/binary"

// cursor is a bounds-checked reader over a section payload. Every read
// verifies its range first, so adversarial inputs surface as
// ErrTruncatedSection instead of slice panics.
type cursor struct {
	data []byte
	off  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.off
}

func (c *cursor) need(n int) error {
	if n < 0 || c.remaining() < n {
		return ErrTruncatedSection
	}
	return nil
}

func (c *cursor) readByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

func (c *cursor) readN(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) readU16() (uint16, error) {
	b, err := c.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32() (uint32, error) {
	b, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64() (uint64, error) {
	b, err := c.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readUvarint reads an unsigned LEB128 varint of at most maxVarintLen
// bytes.
func (c *cursor) readUvarint() (uint64, error) {
	var v uint64
	var shift uint
	for i := 0; i < maxVarintLen; i++ {
		b, err := c.readByte()
		if err != nil {
			return 0, err
		}
		if i == maxVarintLen-1 && b > 1 {
			return 0, ErrTruncatedSection
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
	}
	return 0, ErrTruncatedSection
}

func (c *cursor) readVarint() (int64, error) {
	u, err := c.readUvarint()
	if err != nil {
		return 0, err
	}
	// zigzag decode
	return int64(u>>1) ^ -int64(u&1), nil
}

// readCount reads a varint collection size and enforces the global
// collection cap.
func (c *cursor) readCount() (int, error) {
	n, err := c.readUvarint()
	if err != nil {
		return 0, err
	}
	if n > maxCollectionSize {
		return 0, ErrTruncatedSection
	}
	return int(n), nil
}
