// Package fastparser implements the byte-level HTTP/1.x request tokenizer.
//
// A Scanner consumes a possibly pipelined byte stream and yields
// headers-complete, body and message-complete events. It checks message
// grammar only; header semantics such as Content-Length and
// Transfer-Encoding agreement are left to the caller.
package fastparser

import (
	"bytes"
	"fmt"

	"golang.org/x/net/http/httpguts"

	"github.com/shapestone/shape-ingest/internal/tokenizer"
)

// Head is a parsed request line plus header fields.
type Head struct {
	Method  string
	Target  string
	Major   int
	Minor   int
	Headers []Header
}

// Header is a key-value pair as received.
type Header struct {
	Key   string
	Value string
}

// Parser parses one complete header block in place.
type Parser struct {
	data   []byte
	pos    int
	length int
	line   int // 1-indexed line number for error reporting
}

// NewParser creates a parser over a header block that ends with an empty line.
func NewParser(data []byte) *Parser {
	return &Parser{
		data:   data,
		length: len(data),
		line:   1,
	}
}

// ParseHead parses the request line and all header fields.
func (p *Parser) ParseHead() (*Head, error) {
	line, err := p.readLine()
	if err != nil {
		return nil, p.errorf("missing request line")
	}

	head, err := p.parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headers, err := p.parseHeaders()
	if err != nil {
		return nil, err
	}
	head.Headers = headers
	return head, nil
}

// parseRequestLine parses "METHOD SP TARGET SP VERSION".
func (p *Parser) parseRequestLine(line []byte) (*Head, error) {
	for _, c := range line {
		if c < ' ' || c >= 0x7f {
			return nil, p.errorf("invalid byte %#x in request line", c)
		}
	}

	rl, err := tokenizer.SplitRequestLine(string(line))
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	if !httpguts.ValidHeaderFieldName(rl.Method) {
		return nil, p.errorf("invalid method %q", rl.Method)
	}

	major, minor, ok := parseVersion(rl.Version)
	if !ok {
		return nil, p.errorf("unsupported HTTP version %q", rl.Version)
	}

	return &Head{
		Method: internMethod(line[:len(rl.Method)]),
		Target: rl.Target,
		Major:  major,
		Minor:  minor,
	}, nil
}

// parseVersion accepts HTTP/1.0 and HTTP/1.1 only.
func parseVersion(v string) (major, minor int, ok bool) {
	switch v {
	case "HTTP/1.1":
		return 1, 1, true
	case "HTTP/1.0":
		return 1, 0, true
	}
	return 0, 0, false
}

// parseHeaders parses header lines until the empty line.
// Pre-allocates the headers slice to avoid growth allocations.
func (p *Parser) parseHeaders() ([]Header, error) {
	headers := make([]Header, 0, 8)

	for {
		if p.pos >= p.length {
			return nil, p.errorf("header block not terminated")
		}

		// Empty line ends the block
		if p.data[p.pos] == '\r' && p.pos+1 < p.length && p.data[p.pos+1] == '\n' {
			p.pos += 2
			p.line++
			return headers, nil
		}
		if p.data[p.pos] == '\n' {
			p.pos++
			p.line++
			return headers, nil
		}

		line, err := p.readLine()
		if err != nil {
			return nil, p.errorf("header block not terminated")
		}

		// obs-fold: continuation lines are replaced with a single SP
		for p.pos < p.length && (p.data[p.pos] == ' ' || p.data[p.pos] == '\t') {
			cont, contErr := p.readLine()
			if contErr != nil {
				break
			}
			line = append(line[:len(line):len(line)], ' ')
			line = append(line, bytes.TrimLeft(cont, " \t")...)
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, p.errorf("malformed header line (no colon): %q", line)
		}

		keyBytes := line[:colon]

		// RFC 9112: no whitespace between field-name and colon
		if colon > 0 && (line[colon-1] == ' ' || line[colon-1] == '\t') {
			return nil, p.errorf("whitespace before colon in header name: %q", keyBytes)
		}

		key := internHeaderName(keyBytes)
		if !httpguts.ValidHeaderFieldName(key) {
			return nil, p.errorf("invalid header name %q", key)
		}
		value := string(trimOWS(line[colon+1:]))
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, p.errorf("invalid value for header %q", key)
		}
		headers = append(headers, Header{Key: key, Value: value})
	}
}

// readLine reads bytes until CRLF or LF, advancing pos.
// Returns the line content (without line ending).
func (p *Parser) readLine() ([]byte, error) {
	if p.pos >= p.length {
		return nil, fmt.Errorf("unexpected end of input at line %d", p.line)
	}

	start := p.pos
	for p.pos < p.length {
		if p.data[p.pos] == '\r' && p.pos+1 < p.length && p.data[p.pos+1] == '\n' {
			line := p.data[start:p.pos]
			p.pos += 2
			p.line++
			return line, nil
		}
		if p.data[p.pos] == '\n' {
			line := p.data[start:p.pos]
			p.pos++
			p.line++
			return line, nil
		}
		p.pos++
	}

	return nil, fmt.Errorf("unterminated line %d", p.line)
}

// trimOWS trims optional whitespace (SP and HTAB) from both ends of b.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// FinalCoding returns the last transfer-coding named across all
// Transfer-Encoding fields, lower-cased, or "" if there is none.
func FinalCoding(headers []Header) string {
	final := ""
	for _, h := range headers {
		if !eqFold(h.Key, "Transfer-Encoding") {
			continue
		}
		for _, part := range splitComma(h.Value) {
			if part = trimString(part); part != "" {
				final = part
			}
		}
	}
	return toLowerASCII(final)
}

// ContentLength returns the first Content-Length value, trimmed.
func ContentLength(headers []Header) (string, bool) {
	for _, h := range headers {
		if eqFold(h.Key, "Content-Length") {
			return trimString(h.Value), true
		}
	}
	return "", false
}

// splitComma splits a comma-separated string into parts.
func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// trimString trims leading and trailing SP and HTAB.
func trimString(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

// eqFold is a fast ASCII case-insensitive string comparison.
func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func toLowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Line: p.line}
}
