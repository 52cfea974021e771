package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shapestone/shape-core/pkg/ast"

	"github.com/shapestone/shape-ingest/internal/fastparser"
	"github.com/shapestone/shape-ingest/internal/parser"
)

// Parse parses every request in input into AST nodes, one ObjectNode per
// request in arrival order:
//
//	{ "type": "request", "id": 1, "method": "GET", "target": "/api",
//	  "version": "HTTP/1.1",
//	  "headers": [{"key": "Host", "value": "example.com"}, ...],
//	  "body": "..." }
//
// The input is validated exactly as a connection would be.
func Parse(input string) ([]ast.SchemaNode, error) {
	return ParseReader(strings.NewReader(input))
}

// ParseReader reads all data from r and parses it like Parse.
func ParseReader(r io.Reader) ([]ast.SchemaNode, error) {
	reqs, err := ReadAll(context.Background(), r, DefaultConfig())
	if err != nil {
		return nil, err
	}
	nodes := make([]ast.SchemaNode, len(reqs))
	for i := range reqs {
		nodes[i] = RequestToNode(uint64(i+1), &reqs[i])
	}
	return nodes, nil
}

// RequestToNode converts a request to an AST ObjectNode. id is omitted when
// zero.
func RequestToNode(id uint64, req *Request) ast.SchemaNode {
	return parser.RequestToNode(&parser.Request{
		ID:   id,
		Head: metaToHead(&req.Meta),
		Body: req.Body,
	})
}

// MetaToNode converts a request head to an AST ObjectNode without a body.
func MetaToNode(meta *RequestMeta) ast.SchemaNode {
	return parser.RequestToNode(&parser.Request{Head: metaToHead(meta)})
}

// NodeToRequest converts an AST ObjectNode back to a Request. The headers
// are not validated; use ValidateHeaders for that.
func NodeToRequest(node ast.SchemaNode) (*Request, error) {
	r, err := parser.NodeToRequest(node)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	req := &Request{
		Meta: RequestMeta{
			Method:  r.Head.Method,
			Target:  r.Head.Target,
			Version: Version{Major: r.Head.Major, Minor: r.Head.Minor},
			Headers: make(Headers, len(r.Head.Headers)),
		},
		Body: r.Body,
	}
	for i, h := range r.Head.Headers {
		req.Meta.Headers[i] = Header(h)
	}
	return req, nil
}

// NodeToInterface converts an AST node to native Go types.
func NodeToInterface(node ast.SchemaNode) interface{} {
	return parser.NodeToInterface(node)
}

// Render converts a request node (from Parse) back to wire format bytes.
func Render(node ast.SchemaNode) ([]byte, error) {
	req, err := NodeToRequest(node)
	if err != nil {
		return nil, fmt.Errorf("ingest: Render: %w", err)
	}
	return Marshal(req)
}

func metaToHead(meta *RequestMeta) fastparser.Head {
	head := fastparser.Head{
		Method:  meta.Method,
		Target:  meta.Target,
		Major:   meta.Version.Major,
		Minor:   meta.Version.Minor,
		Headers: make([]fastparser.Header, len(meta.Headers)),
	}
	for i, h := range meta.Headers {
		head.Headers[i] = fastparser.Header(h)
	}
	return head
}
