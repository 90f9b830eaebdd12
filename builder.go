package teal

import "fmt"

// Builder aggregates several parsed fragments into a single Document.
// Schema and union declarations deduplicate by name; a redefinition with
// a different layout is a conflict error rather than a silent overwrite.
type Builder struct {
	doc *Document
}

func NewBuilder() *Builder {
	return &Builder{doc: NewDocument()}
}

func (b *Builder) AddSchema(s *Schema) error {
	if existing, ok := b.doc.Schema(s.Name); ok {
		if !existing.SameLayout(s) {
			return &SchemaConflictError{Name: s.Name}
		}
		return nil
	}
	b.doc.DefineSchema(s)
	return nil
}

func (b *Builder) AddUnion(u *Union) error {
	if existing, ok := b.doc.Union(u.Name); ok {
		if len(existing.Variants) != len(u.Variants) {
			return fmt.Errorf("union %q redefined with different variants", u.Name)
		}
		for i, v := range existing.Variants {
			if v != u.Variants[i] {
				return fmt.Errorf("union %q redefined with different variants", u.Name)
			}
		}
		return nil
	}
	b.doc.DefineUnion(u)
	return nil
}

// Add merges a whole document: schemas and unions deduplicate, data
// entries follow last-write-wins.
func (b *Builder) Add(doc *Document) error {
	for _, s := range doc.Schemas() {
		if err := b.AddSchema(s); err != nil {
			return err
		}
	}
	for _, u := range doc.Unions() {
		if err := b.AddUnion(u); err != nil {
			return err
		}
	}
	for i := 0; i < doc.Len(); i++ {
		key, val := doc.At(i)
		b.doc.Set(key, val)
	}
	if doc.RootArray {
		b.doc.RootArray = true
	}
	return nil
}

func (b *Builder) Set(key string, val Value) {
	b.doc.Set(key, val)
}

// Document returns the aggregated result. The builder retains no
// ownership; callers must not keep using the builder to mutate a
// document they have handed off.
func (b *Builder) Document() *Document {
	return b.doc
}
