package server

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

// Request is a fully received request handed to a Handler. The body has
// already been drained from the connection.
type Request struct {
	ID     uint64
	ConnID string
	Meta   *ingest.RequestMeta
	Body   []byte
}

// Handler produces the response for one request. Handlers are called
// sequentially per connection in arrival order, so responses on a
// connection are always written in request order.
type Handler interface {
	ServeIngest(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// ServeIngest calls f(ctx, req).
func (f HandlerFunc) ServeIngest(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// EchoHandler answers every request with a plain-text summary of what was
// received: the request line, each header and the body.
func EchoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req *Request) *Response {
		var b bytes.Buffer
		b.WriteString(req.Meta.Method)
		b.WriteByte(' ')
		b.WriteString(req.Meta.Target)
		b.WriteByte(' ')
		b.WriteString(req.Meta.Version.String())
		b.WriteByte('\n')
		for _, h := range req.Meta.Headers {
			b.WriteString(h.Key)
			b.WriteString(": ")
			b.WriteString(h.Value)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
		b.Write(req.Body)

		return &Response{
			StatusCode: http.StatusOK,
			Headers: ingest.Headers{
				{Key: "Content-Type", Value: "text/plain; charset=utf-8"},
				{Key: "X-Request-Id", Value: strconv.FormatUint(req.ID, 10)},
			},
			Body: b.Bytes(),
		}
	})
}
