package jsonio

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealdata/teal"
)

func TestExportScalars(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("n", teal.Null{})
	doc.Set("b", teal.Bool(true))
	doc.Set("i", teal.Int(-42))
	doc.Set("u", teal.Uint(math.MaxUint64))
	doc.Set("f", teal.Float(0.5))
	doc.Set("s", teal.String("hi"))
	doc.Set("big", teal.JSONNumber("184467440737095516160"))
	out, err := Export(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"n":null,"b":true,"i":-42,"u":18446744073709551615,"f":0.5,"s":"hi","big":184467440737095516160}`,
		string(out))
}

func TestExportFixedEncodings(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("bytes", teal.Bytes{0xca, 0xfe})
	doc.Set("ref", teal.Ref("other"))
	doc.Set("tagged", &teal.Tagged{Tag: "ok", Value: teal.Int(200)})
	m := teal.NewMap()
	m.Append(teal.Int(1), teal.String("one"))
	doc.Set("map", m)
	doc.Set("ts", teal.Timestamp{Millis: 1710505845123, Offset: 120})
	out, err := Export(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"bytes":"0xcafe","ref":{"$ref":"other"},"tagged":{"$tag":"ok","$value":200},"map":[[1,"one"]],"ts":"2024-03-15T12:30:45.123Z"}`,
		string(out))
}

func TestExportNonFiniteFloatsBecomeNull(t *testing.T) {
	doc := teal.NewDocument()
	arr := teal.NewArray()
	arr.Elems = append(arr.Elems,
		teal.Float(math.NaN()), teal.Float(math.Inf(1)), teal.Float(math.Inf(-1)))
	doc.Set("a", arr)
	out, err := Export(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[null,null,null]}`, string(out))
}

func TestExportPreservesKeyOrder(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("zebra", teal.Int(1))
	doc.Set("apple", teal.Int(2))
	obj := teal.NewObject()
	obj.Set("z", teal.Int(1))
	obj.Set("a", teal.Int(2))
	doc.Set("nested", obj)
	out, err := Export(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"apple":2,"nested":{"z":1,"a":2}}`, string(out))
}

func TestExportRootArray(t *testing.T) {
	doc := teal.NewDocument()
	doc.RootArray = true
	doc.Set("0", teal.String("a"))
	doc.Set("1", teal.Int(2))
	out, err := Export(doc)
	require.NoError(t, err)
	assert.Equal(t, `["a",2]`, string(out))
}

func TestExportPretty(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("a", teal.Int(1))
	out, err := ExportPretty(doc)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(out))
}

func TestImportBasics(t *testing.T) {
	doc, err := Import([]byte(`{"zebra":1,"apple":[true,null,"x"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple"}, doc.Keys())
	v, _ := doc.Get("apple")
	arr := v.(*teal.Array)
	require.Len(t, arr.Elems, 3)
	assert.True(t, teal.Equal(teal.Bool(true), arr.Elems[0]))
	assert.True(t, teal.Equal(teal.Null{}, arr.Elems[1]))
}

func TestImportNumberClassing(t *testing.T) {
	doc, err := Import([]byte(`{
		"int": -42,
		"uint": 18446744073709551615,
		"big": 184467440737095516160,
		"float": 2.5,
		"exp": 1e3
	}`))
	require.NoError(t, err)
	cases := map[string]teal.Value{
		"int":   teal.Int(-42),
		"uint":  teal.Uint(math.MaxUint64),
		"big":   teal.JSONNumber("184467440737095516160"),
		"float": teal.Float(2.5),
		"exp":   teal.Float(1000),
	}
	for key, want := range cases {
		got, ok := doc.Get(key)
		require.True(t, ok, key)
		assert.True(t, teal.Equal(want, got), key)
	}
	// Verbatim text survives a big number.
	big, _ := doc.Get("big")
	assert.Equal(t, teal.JSONNumber("184467440737095516160"), big)
}

func TestImportNeverReversesEncodings(t *testing.T) {
	doc, err := Import([]byte(`{"r":{"$ref":"other"},"h":"0xcafe","p":[[1,"one"]]}`))
	require.NoError(t, err)
	r, _ := doc.Get("r")
	require.Equal(t, teal.KindObject, r.Kind())
	ref, _ := r.(*teal.Object).Get("$ref")
	assert.True(t, teal.Equal(teal.String("other"), ref))
	h, _ := doc.Get("h")
	assert.Equal(t, teal.KindString, h.Kind())
	p, _ := doc.Get("p")
	assert.Equal(t, teal.KindArray, p.Kind())
}

func TestImportRootArray(t *testing.T) {
	doc, err := Import([]byte(`[1,"two"]`))
	require.NoError(t, err)
	assert.True(t, doc.RootArray)
	assert.Equal(t, []string{"0", "1"}, doc.Keys())
}

func TestImportScalarRoot(t *testing.T) {
	doc, err := Import([]byte(`42`))
	require.NoError(t, err)
	v, ok := doc.Get("value")
	require.True(t, ok)
	assert.True(t, teal.Equal(teal.Int(42), v))
}

func TestImportRejectsMalformed(t *testing.T) {
	for _, bad := range []string{``, `{`, `[1,`, `{"a":}`, `{"a":1} trailing`, `{"a":1}2`} {
		_, err := Import([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestImportDepthLimit(t *testing.T) {
	ok := strings.Repeat("[", teal.MaxNestingDepth) + strings.Repeat("]", teal.MaxNestingDepth)
	_, err := Import([]byte(ok))
	assert.NoError(t, err)

	deep := strings.Repeat("[", teal.MaxNestingDepth+1) + strings.Repeat("]", teal.MaxNestingDepth+1)
	_, err = Import([]byte(deep))
	assert.ErrorIs(t, err, teal.ErrDepthExceeded)
}

func TestImportInfersSchemas(t *testing.T) {
	doc, err := Import([]byte(`{"users":[
		{"name":"alice","age":30,"email":"a@x.io"},
		{"name":"bob","age":31,"email":null}
	]}`))
	require.NoError(t, err)

	schema, ok := doc.Schema("User")
	require.True(t, ok)
	require.Len(t, schema.Fields, 3)
	assert.Equal(t, "name", schema.Fields[0].Name)
	assert.Equal(t, teal.TypeString, schema.Fields[0].Type.Base)
	assert.Equal(t, teal.TypeInt, schema.Fields[1].Type.Base)
	// Null in one row makes the field nullable.
	assert.True(t, schema.Fields[2].Type.Nullable)

	users, _ := doc.Get("users")
	assert.NotNil(t, doc.FindSchemaFor(users.(*teal.Array)))
}

func TestImportSchemaInferenceRequiresUniformity(t *testing.T) {
	// Single element: no promotion.
	doc, err := Import([]byte(`{"users":[{"name":"alice"}]}`))
	require.NoError(t, err)
	assert.Empty(t, doc.SchemaNames())

	// Divergent key sets: no promotion.
	doc, err = Import([]byte(`{"users":[{"name":"a"},{"name":"b","extra":1}]}`))
	require.NoError(t, err)
	assert.Empty(t, doc.SchemaNames())

	// A non-object element disqualifies the array.
	doc, err = Import([]byte(`{"users":[{"name":"a"},{"name":"b"},3]}`))
	require.NoError(t, err)
	assert.Empty(t, doc.SchemaNames())
}

func TestImportSchemaTypeMerging(t *testing.T) {
	doc, err := Import([]byte(`{"points":[
		{"x":1,"y":"a"},
		{"x":2.5,"y":true}
	]}`))
	require.NoError(t, err)
	schema, ok := doc.Schema("Point")
	require.True(t, ok)
	assert.Equal(t, teal.TypeFloat, schema.Fields[0].Type.Base)
	assert.Equal(t, teal.TypeAny, schema.Fields[1].Type.Base)
}

func TestImportNestedSchemaInference(t *testing.T) {
	doc, err := Import([]byte(`{"entries":[
		{"tag":"a","point":{"x":1,"y":2}},
		{"tag":"b","point":{"x":3,"y":4}}
	]}`))
	require.NoError(t, err)
	// Singular hint: "entries" -> "Entry".
	_, ok := doc.Schema("Entry")
	assert.True(t, ok)
}

func TestExportImportRoundTrip(t *testing.T) {
	doc := teal.NewDocument()
	doc.Set("zebra", teal.Int(1))
	doc.Set("apple", teal.String("two"))
	obj := teal.NewObject()
	obj.Set("z", teal.Bool(true))
	obj.Set("a", teal.Null{})
	doc.Set("nested", obj)

	out, err := Export(doc)
	require.NoError(t, err)
	back, err := Import(out)
	require.NoError(t, err)
	require.Equal(t, doc.Keys(), back.Keys())
	for _, key := range doc.Keys() {
		w, _ := doc.Get(key)
		g, _ := back.Get(key)
		assert.True(t, teal.Equal(w, g), key)
	}
}
