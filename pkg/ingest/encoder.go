package ingest

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
)

// bufPool pools []byte slices for Marshal.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 2048)
		return &b
	},
}

// AppendRequest appends the HTTP/1.1 wire form of a request to buf.
//
// Headers are written as given. If body is non-empty and the headers declare
// no Content-Length, the body is written as a single chunk when the final
// transfer-coding is chunked and with an added Content-Length otherwise.
func AppendRequest(buf []byte, meta *RequestMeta, body []byte) ([]byte, error) {
	if meta.Method == "" {
		return nil, errors.New("ingest: request method is empty")
	}
	if meta.Target == "" {
		return nil, errors.New("ingest: request target is empty")
	}

	version := meta.Version
	if version == (Version{}) {
		version = HTTP11
	}

	buf = appendRequestLine(buf, meta.Method, meta.Target, version.String())
	buf = appendHeaders(buf, meta.Headers)

	chunked := isChunked(meta.Headers)
	if len(body) > 0 && !chunked && !meta.Headers.Has("Content-Length") {
		buf = append(buf, "Content-Length: "...)
		buf = strconv.AppendInt(buf, int64(len(body)), 10)
		buf = appendCRLF(buf)
	}
	buf = appendCRLF(buf) // empty line before body

	if !chunked {
		return append(buf, body...), nil
	}
	if len(body) > 0 {
		buf = strconv.AppendInt(buf, int64(len(body)), 16)
		buf = appendCRLF(buf)
		buf = append(buf, body...)
		buf = appendCRLF(buf)
	}
	buf = append(buf, '0')
	buf = appendCRLF(buf)
	return appendCRLF(buf), nil
}

// Marshal returns the HTTP/1.1 wire form of req.
//
// Marshal uses a sync.Pool buffer internally.
func Marshal(req *Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("ingest: Marshal(nil)")
	}

	bp := bufPool.Get().(*[]byte)
	buf, err := AppendRequest((*bp)[:0], &req.Meta, req.Body)
	if err != nil {
		bufPool.Put(bp)
		return nil, err
	}

	result := make([]byte, len(buf))
	copy(result, buf)
	*bp = buf
	bufPool.Put(bp)
	return result, nil
}

// Encoder writes requests to an output stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the wire form of req to the stream.
func (enc *Encoder) Encode(req *Request) error {
	data, err := Marshal(req)
	if err != nil {
		return err
	}
	_, err = enc.w.Write(data)
	return err
}

// isChunked reports whether the last transfer-coding named across all
// Transfer-Encoding fields is chunked, the same rule the scanner frames by.
func isChunked(h Headers) bool {
	final := ""
	for _, v := range h.Values("Transfer-Encoding") {
		for _, c := range splitCodings(v) {
			if c != "" {
				final = c
			}
		}
	}
	return strings.EqualFold(final, "chunked")
}

// appendCRLF appends \r\n to buf.
func appendCRLF(buf []byte) []byte {
	return append(buf, '\r', '\n')
}

// appendRequestLine appends "METHOD TARGET VERSION\r\n" to buf.
func appendRequestLine(buf []byte, method, target, version string) []byte {
	buf = append(buf, method...)
	buf = append(buf, ' ')
	buf = append(buf, target...)
	buf = append(buf, ' ')
	buf = append(buf, version...)
	return appendCRLF(buf)
}

// appendHeaders appends all headers in "Key: Value\r\n" format.
func appendHeaders(buf []byte, headers Headers) []byte {
	for _, h := range headers {
		buf = append(buf, h.Key...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = appendCRLF(buf)
	}
	return buf
}
