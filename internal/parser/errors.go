package parser

import (
	"fmt"

	"vitisexpr/pkg/expression"
)

// ParseError locates a malformed cell or row. Line is 1-based and counts the
// header; Column is the header of the offending column when known.
type ParseError struct {
	Path   string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Column != "" {
		loc = fmt.Sprintf("%s (column %q)", loc, e.Column)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

// Unwrap lets errors.Is match expression.ErrMalformedInput.
func (e *ParseError) Unwrap() []error {
	return []error{expression.ErrMalformedInput, e.Err}
}
