package teal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024-03-15T12:30:45Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1710505845000), ts.Millis)
	assert.Equal(t, int16(0), ts.Offset)

	ts, err = ParseTimestamp("2024-03-15T12:30:45.123Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1710505845123), ts.Millis)

	// Fractional digits beyond millis truncate.
	ts, err = ParseTimestamp("2024-03-15T12:30:45.123999Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1710505845123), ts.Millis)

	// Seconds may be omitted and default to zero.
	ts, err = ParseTimestamp("2024-01-01T09:30Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1704101400000), ts.Millis)

	// Date only is midnight UTC.
	ts, err = ParseTimestamp("1970-01-02")
	require.NoError(t, err)
	assert.Equal(t, int64(86400000), ts.Millis)

	// Pre-epoch.
	ts, err = ParseTimestamp("1969-12-31T23:59:59Z")
	require.NoError(t, err)
	assert.Equal(t, int64(-1000), ts.Millis)
}

func TestParseTimestampOffsets(t *testing.T) {
	for _, form := range []string{
		"2024-01-01T09:00:00+02:00",
		"2024-01-01T09:00:00+0200",
		"2024-01-01T09:00:00+02",
	} {
		ts, err := ParseTimestamp(form)
		require.NoError(t, err, form)
		assert.Equal(t, int16(120), ts.Offset, form)
		// 09:00 at +02:00 is 07:00 UTC.
		assert.Equal(t, int64(1704092400000), ts.Millis, form)
	}
	ts, err := ParseTimestamp("2024-01-01T09:00:00-05:30")
	require.NoError(t, err)
	assert.Equal(t, int16(-330), ts.Offset)
}

func TestParseTimestampRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"2024-13-01T00:00:00Z",
		"2024-01-32T00:00:00Z",
		"2024-01-01T25:00:00Z",
		"2024-01-01T00:61:00Z",
		"2024-01-01T00:00:00X",
		"2024-01-01T00",
		"2024-01-01T00:00:",
		"2024-01-01T00:00.5",
		"2024-01-01T00:00:00+2",
		"2024-01-01T00:00:00.Z",
	} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimestampStringRoundTrip(t *testing.T) {
	for _, s := range []string{
		"2024-03-15T12:30:45Z",
		"2024-03-15T12:30:45.123Z",
		"2024-01-01T09:00:00+02:00",
		"2024-01-01T09:00:00-05:30",
		"1969-12-31T23:59:59Z",
		"0001-01-01T00:00:00Z",
	} {
		ts, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, ts.String(), s)
	}
}

func TestTimestampStringClamps(t *testing.T) {
	assert.Equal(t, "9999-12-31T23:59:59.999Z", Timestamp{Millis: maxTimestampMillis + 1}.String())
	assert.Equal(t, "0000-01-01T00:00:00Z", Timestamp{Millis: minTimestampMillis - 1}.String())
}

func TestBuilderConflict(t *testing.T) {
	b := NewBuilder()
	s1 := NewSchema("Person")
	s1.AddField("name", FieldType{Base: TypeString})
	require.NoError(t, b.AddSchema(s1))

	// Identical layout deduplicates.
	s2 := NewSchema("Person")
	s2.AddField("name", FieldType{Base: TypeString})
	require.NoError(t, b.AddSchema(s2))

	// Divergent layout conflicts.
	s3 := NewSchema("Person")
	s3.AddField("name", FieldType{Base: TypeString})
	s3.AddField("age", FieldType{Base: TypeInt})
	err := b.AddSchema(s3)
	require.Error(t, err)
	var conflict *SchemaConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Person", conflict.Name)

	b.Set("a", Int(1))
	doc := b.Document()
	assert.Equal(t, []string{"a"}, doc.Keys())
	assert.Len(t, doc.Schemas(), 1)
}
