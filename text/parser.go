package text

import (
	"github.com/agnivade/levenshtein"
	"github.com/tealdata/teal"
)

// Parser is a recursive-descent parser over the token stream. It builds
// Values directly into a Document; there is no intermediate syntax tree.
// Schema and union declarations are registered as they are seen, and
// tables consult the registry to disambiguate parenthesized groups.
type Parser struct {
	tokens []Token
	pos    int
	doc    *teal.Document
}

// Parse tokenizes and parses src into a Document.
func Parse(src []byte) (*teal.Document, error) {
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens, doc: teal.NewDocument()}
	if err := p.parseDocument(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

func ParseString(s string) (*teal.Document, error) {
	return Parse([]byte(s))
}

func (p *Parser) cur() *Token {
	if p.pos < len(p.tokens) {
		return &p.tokens[p.pos]
	}
	return &p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() *Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) check(kind TokenKind) bool {
	return p.cur().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind) (*Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	return nil, p.unexpected(kind.String())
}

func (p *Parser) unexpected(expected string) error {
	t := p.cur()
	return &SyntaxError{
		Line: t.Line,
		Col:  t.Col,
		Msg:  "expected " + expected + ", found " + t.Kind.String(),
	}
}

func (p *Parser) syntaxErr(err error) error {
	t := p.cur()
	return &SyntaxError{Line: t.Line, Col: t.Col, Err: err}
}

func (p *Parser) parseDocument() error {
	for {
		switch t := p.cur(); t.Kind {
		case TokenEOF:
			return nil
		case TokenDirective:
			p.advance()
			switch t.Text {
			case "struct":
				if err := p.parseStructDef(); err != nil {
					return err
				}
			case "union":
				if err := p.parseUnionDef(); err != nil {
					return err
				}
			case "root-array":
				p.doc.RootArray = true
			default:
				return &SyntaxError{Line: t.Line, Col: t.Col,
					Msg: "unknown top-level directive @" + t.Text}
			}
		case TokenWord, TokenString:
			p.advance()
			if _, err := p.expect(TokenColon); err != nil {
				return err
			}
			val, err := p.parseValue(1)
			if err != nil {
				return err
			}
			p.doc.Set(t.Text, val)
		case TokenRef:
			p.advance()
			if _, err := p.expect(TokenColon); err != nil {
				return err
			}
			val, err := p.parseValue(1)
			if err != nil {
				return err
			}
			p.doc.Set("!"+t.Text, val)
		default:
			return p.unexpected("a declaration or key")
		}
		p.match(TokenComma)
	}
}

func (p *Parser) parseStructDef() error {
	name, err := p.expect(TokenWord)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return err
	}
	schema := teal.NewSchema(name.Text)
	for !p.check(TokenRParen) {
		field, err := p.expect(TokenWord)
		if err != nil {
			return err
		}
		// A field with no type annotation defaults to string.
		ft := teal.FieldType{Base: teal.TypeString}
		if p.match(TokenColon) {
			ft, err = p.parseFieldType()
			if err != nil {
				return err
			}
		}
		schema.AddField(field.Text, ft)
		p.match(TokenComma)
	}
	p.advance()
	p.doc.DefineSchema(schema)
	return nil
}

// parseFieldType reads "[]base?" with optional markers. A non-primitive
// base must name a schema or union that is already registered; forward
// references are rejected here, which is what lets the binary writer
// emit schemas in declaration order.
func (p *Parser) parseFieldType() (teal.FieldType, error) {
	var ft teal.FieldType
	if p.match(TokenLBracket) {
		if _, err := p.expect(TokenRBracket); err != nil {
			return ft, err
		}
		ft.IsArray = true
	}
	base, err := p.expect(TokenWord)
	if err != nil {
		return ft, err
	}
	ft.Base = base.Text
	if p.match(TokenQuestion) {
		ft.Nullable = true
	}
	if !teal.IsPrimitiveType(ft.Base) && !p.doc.HasType(ft.Base) {
		return ft, p.syntaxErr(p.unknownSchema(ft.Base))
	}
	return ft, nil
}

func (p *Parser) parseUnionDef() error {
	name, err := p.expect(TokenWord)
	if err != nil {
		return err
	}
	if _, err := p.expect(TokenLBrace); err != nil {
		return err
	}
	union := teal.NewUnion(name.Text)
	for !p.check(TokenRBrace) {
		variant, err := p.expect(TokenWord)
		if err != nil {
			return err
		}
		union.Variants = append(union.Variants, variant.Text)
		p.match(TokenComma)
	}
	p.advance()
	p.doc.DefineUnion(union)
	return nil
}

// parseValue parses one value. depth is the container nesting level the
// value would occupy; every array, object, map, tagged wrapper, and
// table row counts one level, checked before recursing so adversarial
// input fails with DepthExceeded instead of exhausting the stack.
func (p *Parser) parseValue(depth int) (teal.Value, error) {
	switch t := p.cur(); t.Kind {
	case TokenNull:
		p.advance()
		return teal.Null{}, nil
	case TokenBool:
		p.advance()
		return teal.Bool(t.Bool), nil
	case TokenInt:
		p.advance()
		return teal.Int(t.Int), nil
	case TokenUint:
		p.advance()
		return teal.Uint(t.Uint), nil
	case TokenBigNum:
		p.advance()
		return teal.JSONNumber(t.Text), nil
	case TokenFloat:
		p.advance()
		return teal.Float(t.Float), nil
	case TokenString, TokenWord:
		p.advance()
		return teal.String(t.Text), nil
	case TokenBytes:
		p.advance()
		return teal.Bytes(t.Bytes), nil
	case TokenRef:
		p.advance()
		return teal.Ref(t.Text), nil
	case TokenTimestamp:
		p.advance()
		return t.Ts, nil
	case TokenColon:
		if depth > teal.MaxNestingDepth {
			return nil, p.syntaxErr(teal.ErrDepthExceeded)
		}
		p.advance()
		tag, err := p.expect(TokenWord)
		if err != nil {
			return nil, err
		}
		inner, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		return &teal.Tagged{Tag: tag.Text, Value: inner}, nil
	case TokenDirective:
		p.advance()
		return p.parseDirectiveValue(t, depth)
	case TokenLBrace:
		return p.parseObject(depth)
	case TokenLBracket:
		return p.parseArray(depth)
	case TokenLParen:
		return p.parseTuple(depth)
	}
	return nil, p.unexpected("a value")
}

func (p *Parser) parseDirectiveValue(t *Token, depth int) (teal.Value, error) {
	switch t.Text {
	case "map":
		return p.parseMap(depth)
	case "table":
		name, err := p.expect(TokenWord)
		if err != nil {
			return nil, err
		}
		schema, ok := p.doc.Schema(name.Text)
		if !ok {
			return nil, p.syntaxErr(p.unknownSchema(name.Text))
		}
		return p.parseTable(schema, depth)
	}
	// @Name binds the value to schema Name: a single tuple or a table.
	schema, ok := p.doc.Schema(t.Text)
	if !ok {
		return nil, &SyntaxError{Line: t.Line, Col: t.Col, Err: p.unknownSchema(t.Text)}
	}
	if p.check(TokenLBracket) {
		return p.parseTable(schema, depth)
	}
	return p.parseTupleWithSchema(schema, depth)
}

func (p *Parser) unknownSchema(name string) error {
	err := &UnknownSchemaError{Name: name}
	best, bestDist := "", 4
	for _, candidate := range p.doc.SchemaNames() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	err.Suggestion = best
	return err
}

func (p *Parser) parseObject(depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, p.syntaxErr(teal.ErrDepthExceeded)
	}
	p.advance()
	obj := teal.NewObject()
	for !p.check(TokenRBrace) {
		var key string
		switch t := p.cur(); t.Kind {
		case TokenWord, TokenString:
			key = t.Text
		case TokenRef:
			key = "!" + t.Text
		default:
			return nil, p.unexpected("an object key")
		}
		p.advance()
		if _, err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		val, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		// Duplicate keys are last-write-wins; the first occurrence
		// keeps its position.
		obj.Set(key, val)
		p.match(TokenComma)
	}
	p.advance()
	return obj, nil
}

func (p *Parser) parseArray(depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, p.syntaxErr(teal.ErrDepthExceeded)
	}
	p.advance()
	arr := teal.NewArray()
	for !p.check(TokenRBracket) {
		elem, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, elem)
		p.match(TokenComma)
	}
	p.advance()
	return arr, nil
}

// parseTuple parses a parenthesized group outside any schema context,
// which is just a literal array.
func (p *Parser) parseTuple(depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, p.syntaxErr(teal.ErrDepthExceeded)
	}
	p.advance()
	arr := teal.NewArray()
	for !p.check(TokenRParen) {
		elem, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, elem)
		p.match(TokenComma)
	}
	p.advance()
	return arr, nil
}

func (p *Parser) parseMap(depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, p.syntaxErr(teal.ErrDepthExceeded)
	}
	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	m := teal.NewMap()
	for !p.check(TokenRBrace) {
		var key teal.Value
		switch t := p.cur(); t.Kind {
		case TokenString, TokenWord:
			key = teal.String(t.Text)
		case TokenInt:
			key = teal.Int(t.Int)
		case TokenUint:
			key = teal.Uint(t.Uint)
		default:
			return nil, p.unexpected("a map key (string, word, or integer)")
		}
		p.advance()
		if _, err := p.expect(TokenColon); err != nil {
			return nil, err
		}
		val, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}
		m.Append(key, val)
		p.match(TokenComma)
	}
	p.advance()
	return m, nil
}

func (p *Parser) parseTable(schema *teal.Schema, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, p.syntaxErr(teal.ErrDepthExceeded)
	}
	if _, err := p.expect(TokenLBracket); err != nil {
		return nil, err
	}
	arr := teal.NewArray()
	for !p.check(TokenRBracket) {
		row, err := p.parseTupleWithSchema(schema, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, row)
		p.match(TokenComma)
	}
	p.advance()
	return arr, nil
}

// parseTupleWithSchema parses one positional tuple against a schema,
// binding each position to the corresponding field. A '~' on a nullable
// field means the field is absent; on a non-nullable field it is an
// explicit null. A tuple may stop early when the remaining fields are
// all nullable.
func (p *Parser) parseTupleWithSchema(schema *teal.Schema, depth int) (teal.Value, error) {
	if depth > teal.MaxNestingDepth {
		return nil, p.syntaxErr(teal.ErrDepthExceeded)
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	obj := teal.NewObject()
	for _, field := range schema.Fields {
		if p.check(TokenRParen) {
			if !field.Type.Nullable {
				return nil, &SyntaxError{
					Line: p.cur().Line, Col: p.cur().Col,
					Msg: "tuple for schema " + schema.Name + " is missing field " + field.Name,
				}
			}
			continue
		}
		if p.check(TokenNull) {
			p.advance()
			if !field.Type.Nullable {
				obj.Set(field.Name, teal.Null{})
			}
			p.match(TokenComma)
			continue
		}
		val, err := p.parseValueForField(field.Type, depth+1)
		if err != nil {
			return nil, err
		}
		obj.Set(field.Name, val)
		p.match(TokenComma)
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return obj, nil
}

// parseValueForField is the schema-directed disambiguation point: when a
// field's declared type names a registered schema, a parenthesized group
// is a nested positional tuple rather than a literal grouped value.
func (p *Parser) parseValueForField(ft teal.FieldType, depth int) (teal.Value, error) {
	if p.check(TokenNull) {
		p.advance()
		return teal.Null{}, nil
	}
	if ft.IsArray {
		if depth > teal.MaxNestingDepth {
			return nil, p.syntaxErr(teal.ErrDepthExceeded)
		}
		if _, err := p.expect(TokenLBracket); err != nil {
			return nil, err
		}
		arr := teal.NewArray()
		elemType := teal.FieldType{Base: ft.Base, Nullable: true}
		for !p.check(TokenRBracket) {
			elem, err := p.parseValueForField(elemType, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, elem)
			p.match(TokenComma)
		}
		p.advance()
		return arr, nil
	}
	if nested, ok := p.doc.Schema(ft.Base); ok && p.check(TokenLParen) {
		return p.parseTupleWithSchema(nested, depth)
	}
	return p.parseValue(depth)
}
