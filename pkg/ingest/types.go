// Package ingest turns the byte stream of one HTTP/1.1 connection into an
// ordered sequence of requests.
//
// A Parser reads from the connection, validates every header block against
// request-smuggling ambiguities, routes body bytes to the request that owns
// them and hands requests out strictly in arrival order, one response at a
// time, as HTTP/1.1 pipelining requires.
//
// # Thread Safety
//
// A Parser and the Messages it returns belong to one connection and must be
// used from a single goroutine. Independent Parsers share no state.
//
// # Usage
//
//	p := ingest.NewParser(conn, ingest.DefaultConfig())
//	for {
//		msg, err := p.NextRequest(ctx)
//		if err != nil {
//			break
//		}
//		body, _ := io.ReadAll(msg.Body())
//		writeResponse(conn, msg, body)
//		p.AdvanceAfterResponse()
//	}
package ingest

import (
	"strconv"
	"strings"
)

// Header represents a single HTTP header key-value pair.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered, repeatable list of HTTP headers as received.
// Duplicates are preserved; lookups compare names case-insensitively.
type Headers []Header

// Get returns the first header value for the given key (case-insensitive).
// Returns empty string if not found.
func (h Headers) Get(key string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			return hdr.Value
		}
	}
	return ""
}

// Values returns all header values for the given key (case-insensitive).
func (h Headers) Values(key string) []string {
	var vals []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			vals = append(vals, hdr.Value)
		}
	}
	return vals
}

// Count returns how many headers carry the given key (case-insensitive).
func (h Headers) Count(key string) int {
	n := 0
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			n++
		}
	}
	return n
}

// Has reports whether at least one header carries the given key.
func (h Headers) Has(key string) bool {
	return h.Count(key) > 0
}

// Add appends a header without replacing existing ones.
func (h *Headers) Add(key, value string) {
	*h = append(*h, Header{Key: key, Value: value})
}

// Clone returns a deep copy of the headers.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	clone := make(Headers, len(h))
	copy(clone, h)
	return clone
}

// Version is an HTTP protocol version. Only 1.0 and 1.1 are ever produced
// by a Parser.
type Version struct {
	Major int
	Minor int
}

var (
	HTTP10 = Version{Major: 1, Minor: 0}
	HTTP11 = Version{Major: 1, Minor: 1}
)

// String returns the version in wire form, e.g. "HTTP/1.1".
func (v Version) String() string {
	return "HTTP/" + strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// ParseVersion parses "HTTP/1.0" or "HTTP/1.1".
func ParseVersion(s string) (Version, bool) {
	switch s {
	case "HTTP/1.1":
		return HTTP11, true
	case "HTTP/1.0":
		return HTTP10, true
	}
	return Version{}, false
}

// RequestMeta is the validated request line and header block of a request.
// It is never modified after the header block is accepted.
type RequestMeta struct {
	Method  string  // "GET", "POST", etc.
	Target  string  // raw request-target "/api/users?q=foo"
	Version Version // HTTP/1.0 or HTTP/1.1
	Headers Headers // ordered, repeatable headers
}

// KeepAlive reports whether the connection may carry another request after
// this one: HTTP/1.1 unless "Connection: close", HTTP/1.0 only with
// "Connection: keep-alive".
func (m *RequestMeta) KeepAlive() bool {
	var sawClose, sawKeepAlive bool
	for _, v := range m.Headers.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "close":
				sawClose = true
			case "keep-alive":
				sawKeepAlive = true
			}
		}
	}
	if sawClose {
		return false
	}
	if m.Version == HTTP10 {
		return sawKeepAlive
	}
	return true
}
