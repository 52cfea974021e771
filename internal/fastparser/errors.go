package fastparser

import (
	"errors"
	"fmt"
)

// ErrHeaderTooLarge is returned when a header block or chunk trailer grows
// past the scanner's limit without terminating.
var ErrHeaderTooLarge = errors.New("header block too large")

// SyntaxError reports input that does not follow HTTP/1.1 message grammar.
type SyntaxError struct {
	Msg  string // human-readable description
	Line int    // 1-indexed line within the header block (0 if not in a header block)
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Msg)
	}
	return "parse error: " + e.Msg
}

func syntaxErrorf(format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

var errChunkSizeTooLarge = errors.New("chunk size too large")
