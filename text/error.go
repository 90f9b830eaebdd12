package text

import (
	"errors"
	"fmt"
)

var (
	ErrUnterminatedString = errors.New("unterminated string literal")
	ErrInvalidEscape      = errors.New("invalid escape sequence")
)

// SyntaxError carries the source position of a tokenizer or parser
// failure. Line and column are 1-based.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("line %d, col %d: %s: %s", e.Line, e.Col, e.Msg, e.Err)
		}
		return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Err)
	}
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// UnknownSchemaError reports a reference to a schema that is not
// registered at the point of use. Suggestion, when non-empty, names the
// closest registered schema.
type UnknownSchemaError struct {
	Name       string
	Suggestion string
}

func (e *UnknownSchemaError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown schema %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown schema %q", e.Name)
}
