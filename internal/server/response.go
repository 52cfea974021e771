package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

// Response is what a Handler returns for one request.
type Response struct {
	StatusCode int            // 200, 404, etc.
	Reason     string         // defaults to the standard reason phrase
	Headers    ingest.Headers // ordered, repeatable headers
	Body       []byte
}

// appendResponse serializes a response to wire format. Content-Length is
// always set by the server; a Connection: close header is added when the
// connection ends after this response. bodyAllowed is false for HEAD.
func appendResponse(buf []byte, version ingest.Version, resp *Response, keepAlive, bodyAllowed bool) []byte {
	reason := resp.Reason
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}

	buf = appendStatusLine(buf, version.String(), resp.StatusCode, reason)
	for _, h := range resp.Headers {
		if strings.EqualFold(h.Key, "Content-Length") || strings.EqualFold(h.Key, "Transfer-Encoding") {
			continue
		}
		if strings.EqualFold(h.Key, "Connection") {
			continue
		}
		buf = append(buf, h.Key...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = appendCRLF(buf)
	}

	if !bodyless(resp.StatusCode) {
		buf = append(buf, "Content-Length: "...)
		buf = strconv.AppendInt(buf, int64(len(resp.Body)), 10)
		buf = appendCRLF(buf)
	}
	switch {
	case !keepAlive:
		buf = append(buf, "Connection: close\r\n"...)
	case version == ingest.HTTP10:
		buf = append(buf, "Connection: keep-alive\r\n"...)
	}
	buf = appendCRLF(buf) // empty line before body

	if bodyAllowed && !bodyless(resp.StatusCode) {
		buf = append(buf, resp.Body...)
	}
	return buf
}

// bodyless reports whether a status code forbids a body.
func bodyless(code int) bool {
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// appendStatusLine appends "VERSION STATUS REASON\r\n" to buf.
func appendStatusLine(buf []byte, version string, statusCode int, reason string) []byte {
	buf = append(buf, version...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(statusCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, reason...)
	return appendCRLF(buf)
}

// appendCRLF appends \r\n to buf.
func appendCRLF(buf []byte) []byte {
	return append(buf, '\r', '\n')
}

// errorResponse maps a protocol error to the response sent before closing.
func errorResponse(err error) *Response {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, ingest.ErrHeaderTooLarge):
		code = http.StatusRequestHeaderFieldsTooLarge
	case errors.Is(err, ingest.ErrBodyTooLarge):
		code = http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrUnknownTransferEncoding):
		code = http.StatusNotImplemented
	case errors.Is(err, ingest.ErrTooManyPipelined):
		code = http.StatusServiceUnavailable
	}
	return &Response{
		StatusCode: code,
		Headers:    ingest.Headers{{Key: "Content-Type", Value: "text/plain; charset=utf-8"}},
		Body:       []byte(http.StatusText(code) + "\n"),
	}
}
