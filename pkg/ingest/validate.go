package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// knownCodings are the transfer-codings a request may name.
var knownCodings = map[string]bool{
	"chunked":  true,
	"compress": true,
	"deflate":  true,
	"gzip":     true,
	"identity": true,
}

// ValidateHeaders rejects header sets whose message framing is ambiguous.
// The rules are applied in order and the first violation wins:
//
//  1. at most one Content-Length field
//  2. a Content-Length value is one or more ASCII digits
//  3. with several Transfer-Encoding fields, the last one is exactly "chunked"
//  4. every coding in the first Transfer-Encoding field is a known coding
//  5. a multi-coding Transfer-Encoding field ends with "chunked"
//  6. Content-Length and a chunked Transfer-Encoding never appear together
//
// The returned error is a *ProtocolError. ValidateHeaders never modifies h.
func ValidateHeaders(h Headers) error {
	var contentLengths, transferEncodings []string
	for _, hdr := range h {
		switch {
		case strings.EqualFold(hdr.Key, "Content-Length"):
			contentLengths = append(contentLengths, hdr.Value)
		case strings.EqualFold(hdr.Key, "Transfer-Encoding"):
			transferEncodings = append(transferEncodings, hdr.Value)
		}
	}

	if len(contentLengths) > 1 {
		return protocolError(ErrDuplicateContentLength, fmt.Sprintf("%d fields", len(contentLengths)))
	}
	if len(contentLengths) == 1 && !isDigits(contentLengths[0]) {
		return protocolError(ErrInvalidContentLength, fmt.Sprintf("%q", contentLengths[0]))
	}

	if len(transferEncodings) == 0 {
		return nil
	}

	if n := len(transferEncodings); n > 1 {
		last := strings.ToLower(strings.TrimSpace(transferEncodings[n-1]))
		if last != "chunked" {
			return protocolError(ErrMisorderedTransferEncoding, fmt.Sprintf("last of %d fields is %q", n, last))
		}
	}

	codings := splitCodings(transferEncodings[0])
	for _, c := range codings {
		if !knownCodings[strings.ToLower(c)] {
			return &ProtocolError{Err: ErrUnknownTransferEncoding, Token: c}
		}
	}
	if len(codings) > 1 && !strings.EqualFold(codings[len(codings)-1], "chunked") {
		return protocolError(ErrChunkedNotFinal, transferEncodings[0])
	}

	if len(contentLengths) == 1 {
		for _, v := range transferEncodings {
			if hasChunked(v) {
				return protocolError(ErrConflictingLengthAndChunkedEncoding, "")
			}
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// splitCodings splits a Transfer-Encoding value on commas and trims each
// coding. Empty codings are kept so that they are rejected as unknown.
func splitCodings(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func hasChunked(v string) bool {
	for _, c := range splitCodings(v) {
		if strings.EqualFold(c, "chunked") {
			return true
		}
	}
	return false
}

// Validate checks that input is a sequence of zero or more complete,
// acceptable HTTP/1.1 requests. It returns the first protocol violation, an
// error for a truncated final request, or nil.
func Validate(input string) error {
	return ValidateReader(strings.NewReader(input))
}

// ValidateReader reads r to the end and validates it like Validate.
func ValidateReader(r io.Reader) error {
	_, err := ReadAll(context.Background(), r, DefaultConfig())
	return err
}

// Request is a fully received request, as returned by ReadAll.
type Request struct {
	Meta RequestMeta
	Body []byte
}

// ReadAll parses every request in r until the reader is exhausted. A request
// cut short by the end of input is reported as ErrMalformedMessage.
func ReadAll(ctx context.Context, r io.Reader, cfg Config) ([]Request, error) {
	p := NewParser(r, cfg)
	defer p.Close()

	var reqs []Request
	for {
		msg, err := p.NextRequest(ctx)
		if errors.Is(err, ErrConnectionClosed) {
			if p.inMessage() {
				return reqs, protocolError(ErrMalformedMessage, "unexpected end of input")
			}
			return reqs, nil
		}
		if err != nil {
			return reqs, err
		}

		var body bytes.Buffer
		if _, err := io.Copy(&body, msg.Body()); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				return reqs, protocolError(ErrMalformedMessage, "unexpected end of input in body")
			}
			return reqs, err
		}
		reqs = append(reqs, Request{Meta: *msg.Meta(), Body: body.Bytes()})
		p.AdvanceAfterResponse()
	}
}
