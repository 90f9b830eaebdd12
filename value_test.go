package teal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(Null{}, Null{}))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.False(t, Equal(Bool(true), Bool(false)))
	assert.True(t, Equal(Int(-7), Int(-7)))
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("a"), String("b")))
	assert.True(t, Equal(Bytes{1, 2}, Bytes{1, 2}))
	assert.False(t, Equal(Bytes{1, 2}, Bytes{1, 3}))
	assert.False(t, Equal(Int(1), String("1")))
}

func TestEqualFloatBitExact(t *testing.T) {
	assert.True(t, Equal(Float(math.NaN()), Float(math.NaN())))
	assert.False(t, Equal(Float(0.0), Float(math.Copysign(0, -1))))
	assert.True(t, Equal(Float(1.5), Float(1.5)))
	assert.True(t, Equal(Float(math.Inf(1)), Float(math.Inf(1))))
	assert.False(t, Equal(Float(math.Inf(1)), Float(math.Inf(-1))))
}

func TestEqualIntUintCoercion(t *testing.T) {
	assert.True(t, Equal(Int(42), Uint(42)))
	assert.True(t, Equal(Uint(42), Int(42)))
	assert.False(t, Equal(Int(-1), Uint(math.MaxUint64)))
	assert.False(t, Equal(Uint(math.MaxUint64), Int(-1)))
}

func TestEqualContainers(t *testing.T) {
	a := NewObject()
	a.Set("x", Int(1))
	a.Set("y", String("two"))
	b := NewObject()
	b.Set("x", Int(1))
	b.Set("y", String("two"))
	assert.True(t, Equal(a, b))

	// Same entries, different order: not equal.
	c := NewObject()
	c.Set("y", String("two"))
	c.Set("x", Int(1))
	assert.False(t, Equal(a, c))

	m1 := NewMap()
	m1.Append(Int(1), String("one"))
	m2 := NewMap()
	m2.Append(Int(1), String("one"))
	assert.True(t, Equal(m1, m2))

	assert.True(t, Equal(
		&Tagged{Tag: "ok", Value: Int(200)},
		&Tagged{Tag: "ok", Value: Int(200)},
	))
	assert.False(t, Equal(
		&Tagged{Tag: "ok", Value: Int(200)},
		&Tagged{Tag: "err", Value: Int(200)},
	))
}

func TestObjectLastWriteWinsKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("first", Int(1))
	obj.Set("second", Int(2))
	obj.Set("first", Int(99))
	require.Equal(t, 2, obj.Len())
	key, val := obj.At(0)
	assert.Equal(t, "first", key)
	assert.True(t, Equal(Int(99), val))
}

func TestDocumentOrder(t *testing.T) {
	doc := NewDocument()
	doc.Set("zebra", Int(1))
	doc.Set("apple", Int(2))
	assert.Equal(t, []string{"zebra", "apple"}, doc.Keys())
}

func TestGetPath(t *testing.T) {
	doc := NewDocument()
	users := NewArray()
	alice := NewObject()
	alice.Set("name", String("alice"))
	users.Elems = append(users.Elems, alice)
	doc.Set("users", users)

	v, ok := doc.GetPath("users.0.name")
	require.True(t, ok)
	assert.True(t, Equal(String("alice"), v))

	_, ok = doc.GetPath("users.1.name")
	assert.False(t, ok)
	_, ok = doc.GetPath("users.zero")
	assert.False(t, ok)
	_, ok = doc.GetPath("missing")
	assert.False(t, ok)
}

func TestParseFieldType(t *testing.T) {
	cases := []string{"string", "int?", "[]float", "[]Person?"}
	for _, s := range cases {
		assert.Equal(t, s, ParseFieldType(s).String())
	}
	ft := ParseFieldType("[]int?")
	assert.Equal(t, TypeInt, ft.Base)
	assert.True(t, ft.IsArray)
	assert.True(t, ft.Nullable)
}

func TestObjectMatchesSchema(t *testing.T) {
	doc := NewDocument()
	schema := NewSchema("Person")
	schema.AddField("name", FieldType{Base: TypeString})
	schema.AddField("age", FieldType{Base: TypeInt, Nullable: true})
	doc.DefineSchema(schema)

	obj := NewObject()
	obj.Set("name", String("Alice"))
	obj.Set("age", Int(30))
	assert.True(t, doc.ObjectMatchesSchema(obj, schema))

	// Missing nullable field still matches.
	partial := NewObject()
	partial.Set("name", String("Bob"))
	assert.True(t, doc.ObjectMatchesSchema(partial, schema))

	// Missing required field does not.
	empty := NewObject()
	empty.Set("age", Int(1))
	assert.False(t, doc.ObjectMatchesSchema(empty, schema))

	// Extra key does not.
	extra := NewObject()
	extra.Set("name", String("Eve"))
	extra.Set("height", Int(170))
	assert.False(t, doc.ObjectMatchesSchema(extra, schema))

	// Wrong type does not.
	wrong := NewObject()
	wrong.Set("name", Int(5))
	assert.False(t, doc.ObjectMatchesSchema(wrong, schema))
}

func TestFindSchemaFor(t *testing.T) {
	doc := NewDocument()
	schema := NewSchema("Point")
	schema.AddField("x", FieldType{Base: TypeInt})
	schema.AddField("y", FieldType{Base: TypeInt})
	doc.DefineSchema(schema)

	arr := NewArray()
	for i := 0; i < 3; i++ {
		p := NewObject()
		p.Set("x", Int(int64(i)))
		p.Set("y", Int(int64(i*2)))
		arr.Elems = append(arr.Elems, p)
	}
	require.NotNil(t, doc.FindSchemaFor(arr))

	arr.Elems = append(arr.Elems, Int(7))
	assert.Nil(t, doc.FindSchemaFor(arr))
	assert.Nil(t, doc.FindSchemaFor(NewArray()))
}
