package text

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealdata/teal"
)

// roundTrip formats src's document and parses the result back, checking
// that nothing was lost or reordered.
func roundTrip(t *testing.T, src string) {
	t.Helper()
	doc := parseDoc(t, src)
	for _, render := range []string{Format(doc), FormatCompact(doc)} {
		got, err := ParseString(render)
		require.NoError(t, err, "re-parse of %q", render)
		assertSameDocument(t, doc, got, render)
	}
}

func assertSameDocument(t *testing.T, want, got *teal.Document, render string) {
	t.Helper()
	assert.Equal(t, want.RootArray, got.RootArray, render)
	require.Equal(t, want.Keys(), got.Keys(), render)
	for _, key := range want.Keys() {
		w, _ := want.Get(key)
		g, _ := got.Get(key)
		assert.True(t, teal.Equal(w, g), "key %s in %q", key, render)
	}
	require.Equal(t, want.SchemaNames(), got.SchemaNames(), render)
	for _, name := range want.SchemaNames() {
		w, _ := want.Schema(name)
		g, _ := got.Schema(name)
		assert.True(t, w.SameLayout(g), "schema %s in %q", name, render)
	}
	require.Equal(t, want.UnionNames(), got.UnionNames(), render)
}

func TestFormatRoundTrips(t *testing.T) {
	sources := []string{
		"a: 1, b: hello, c: true, d: ~, e: -2.5",
		`s: "needs quoting: spaces" t: "tab\there" u: "A"`,
		"big: 18446744073709551615 neg: -9223372036854775808",
		"data: b\"cafef00d\" empty: b\"\"",
		"nested: {a: [1, {b: 2}], m: @map {k: [true, ~]}}",
		"link: !target tagged: :ok {code: 200}",
		"ts: 2024-03-15T12:30:45.123Z off: 2024-01-01T09:00:00+02:00",
		"f: NaN g: inf h: -inf i: 1e300 j: 3.0",
		"\"weird key\": 1 \"\": 2 \"true\": 3 !anchor: 4",
	}
	for _, src := range sources {
		roundTrip(t, src)
	}
}

func TestFormatSchemaRoundTrip(t *testing.T) {
	roundTrip(t, `
		@union Shape { Circle, Rectangle }
		@struct point (x: int, y: int)
		@struct user (name: string, email: string?, tags: []string)
		points: @table point [(1, 2), (3, 4)]
		users: @table user [(alice, ~, [a, b]), (bob, "b@x.io", [])]
		shape: :Circle {r: 2.0}
	`)
}

func TestFormatNestedSchemaRoundTrip(t *testing.T) {
	roundTrip(t, `
		@struct point (x: int, y: int)
		@struct segment (from: point, to: point)
		segs: @table segment [((0, 0), (3, 4)), ((1, 1), (2, 2))]
	`)
}

func TestFormatEmitsTableForm(t *testing.T) {
	doc := parseDoc(t, `
		@struct point (x: int, y: int)
		points: [{x: 1, y: 2}, {x: 3, y: 4}]
	`)
	out := Format(doc)
	assert.Contains(t, out, "@table point [(1, 2), (3, 4)]")
}

func TestFormatRootArray(t *testing.T) {
	doc := parseDoc(t, "@root-array\n0: a\n1: b")
	out := Format(doc)
	assert.Contains(t, out, "@root-array\n")
	roundTrip(t, "@root-array\n0: a\n1: b")
}

func TestFormatQuoting(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("word", teal.String("bare"))
	doc.Set("spaced", teal.String("two words"))
	doc.Set("keyword", teal.String("true"))
	doc.Set("empty", teal.String(""))
	out := Format(doc)
	assert.Contains(t, out, "word: bare\n")
	assert.Contains(t, out, `spaced: "two words"`)
	assert.Contains(t, out, `keyword: "true"`)
	assert.Contains(t, out, `empty: ""`)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "3.0", formatFloat(3))
	assert.Equal(t, "-0.5", formatFloat(-0.5))
	assert.Equal(t, "NaN", formatFloat(math.NaN()))
	assert.Equal(t, "inf", formatFloat(math.Inf(1)))
	assert.Equal(t, "-inf", formatFloat(math.Inf(-1)))
	assert.Equal(t, "1e+300", formatFloat(1e300))
}

func TestFormatBigNumberRoundTrip(t *testing.T) {
	// A numeric literal too large for any 64-bit representation keeps
	// its text through a full serialize/parse cycle, including one with
	// a fraction or exponent.
	doc := teal.NewDocument()
	doc.Set("n", teal.JSONNumber("1e310"))
	doc.Set("m", teal.JSONNumber("184467440737095516160"))
	out := Format(doc)
	assert.Equal(t, "n: 1e310\nm: 184467440737095516160\n", out)

	back, err := ParseString(out)
	require.NoError(t, err)
	n, _ := back.Get("n")
	assert.Equal(t, teal.JSONNumber("1e310"), n)
	m, _ := back.Get("m")
	assert.Equal(t, teal.JSONNumber("184467440737095516160"), m)
}

func TestFormatCompactIsDenser(t *testing.T) {
	doc := parseDoc(t, "a: {x: 1, y: [1, 2]}")
	assert.Less(t, len(FormatCompact(doc)), len(Format(doc)))
}

func TestFormatControlCharsEscaped(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("s", teal.String("a\x01b"))
	out := Format(doc)
	assert.Contains(t, out, "\\u0001")
	roundTripDoc, err := ParseString(out)
	require.NoError(t, err)
	v, _ := roundTripDoc.Get("s")
	assert.True(t, teal.Equal(teal.String("a\x01b"), v))
}
