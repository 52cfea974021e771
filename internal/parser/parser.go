// Package parser maps requests to shape-core AST nodes and back.
//
// A request is represented as an ObjectNode:
//
//	{ "type": "request", "id": 1, "method": "POST", "target": "/api",
//	  "version": "HTTP/1.1",
//	  "headers": [{"key": "Host", "value": "example.com"}, ...],
//	  "body": "..." }
//
// "id" and "body" are optional.
package parser

import (
	"fmt"
	"strconv"

	"github.com/shapestone/shape-core/pkg/ast"

	"github.com/shapestone/shape-ingest/internal/fastparser"
)

var zeroPos = ast.Position{}

// Request is the data carried by a request node.
type Request struct {
	ID   uint64
	Head fastparser.Head
	Body []byte
}

// RequestToNode converts a request to an AST ObjectNode.
func RequestToNode(req *Request) ast.SchemaNode {
	props := map[string]ast.SchemaNode{
		"type":    ast.NewLiteralNode("request", zeroPos),
		"method":  ast.NewLiteralNode(req.Head.Method, zeroPos),
		"target":  ast.NewLiteralNode(req.Head.Target, zeroPos),
		"version": ast.NewLiteralNode(versionString(req.Head.Major, req.Head.Minor), zeroPos),
		"headers": headersToNode(req.Head.Headers),
	}
	if req.ID != 0 {
		props["id"] = ast.NewLiteralNode(int64(req.ID), zeroPos)
	}
	if req.Body != nil {
		props["body"] = ast.NewLiteralNode(string(req.Body), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}

// NodeToRequest converts an AST ObjectNode back to a request.
func NodeToRequest(node ast.SchemaNode) (*Request, error) {
	obj, ok := node.(*ast.ObjectNode)
	if !ok {
		return nil, fmt.Errorf("expected ObjectNode, got %T", node)
	}

	props := obj.Properties()
	if typ := stringProp(props, "type"); typ != "" && typ != "request" {
		return nil, fmt.Errorf("unsupported node type %q", typ)
	}

	req := &Request{}
	req.Head.Method = stringProp(props, "method")
	req.Head.Target = stringProp(props, "target")

	if v := stringProp(props, "version"); v != "" {
		major, minor, ok := parseVersion(v)
		if !ok {
			return nil, fmt.Errorf("unsupported version %q", v)
		}
		req.Head.Major, req.Head.Minor = major, minor
	}
	if v, ok := props["id"]; ok {
		req.ID = nodeToUint(v)
	}
	if v, ok := props["headers"]; ok {
		hdrs, err := nodeToHeaders(v)
		if err != nil {
			return nil, err
		}
		req.Head.Headers = hdrs
	}
	if v, ok := props["body"]; ok {
		if lit, ok := v.(*ast.LiteralNode); ok {
			if s, ok := lit.Value().(string); ok {
				req.Body = []byte(s)
			}
		}
	}

	return req, nil
}

// NodeToInterface converts an AST node to native Go types.
func NodeToInterface(node ast.SchemaNode) interface{} {
	switch n := node.(type) {
	case *ast.LiteralNode:
		return n.Value()
	case *ast.ArrayDataNode:
		elements := n.Elements()
		arr := make([]interface{}, len(elements))
		for i, elem := range elements {
			arr[i] = NodeToInterface(elem)
		}
		return arr
	case *ast.ObjectNode:
		props := n.Properties()
		m := make(map[string]interface{}, len(props))
		for k, v := range props {
			m[k] = NodeToInterface(v)
		}
		return m
	default:
		return nil
	}
}

func headersToNode(headers []fastparser.Header) ast.SchemaNode {
	elements := make([]ast.SchemaNode, len(headers))
	for i, h := range headers {
		elements[i] = ast.NewObjectNode(map[string]ast.SchemaNode{
			"key":   ast.NewLiteralNode(h.Key, zeroPos),
			"value": ast.NewLiteralNode(h.Value, zeroPos),
		}, zeroPos)
	}
	return ast.NewArrayDataNode(elements, zeroPos)
}

func nodeToHeaders(node ast.SchemaNode) ([]fastparser.Header, error) {
	arr, ok := node.(*ast.ArrayDataNode)
	if !ok {
		return nil, fmt.Errorf("expected ArrayDataNode for headers, got %T", node)
	}

	elements := arr.Elements()
	headers := make([]fastparser.Header, 0, len(elements))
	for _, elem := range elements {
		obj, ok := elem.(*ast.ObjectNode)
		if !ok {
			continue
		}
		props := obj.Properties()
		headers = append(headers, fastparser.Header{
			Key:   stringProp(props, "key"),
			Value: stringProp(props, "value"),
		})
	}

	return headers, nil
}

func stringProp(props map[string]ast.SchemaNode, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	lit, ok := v.(*ast.LiteralNode)
	if !ok {
		return ""
	}
	s, _ := lit.Value().(string)
	return s
}

func nodeToUint(node ast.SchemaNode) uint64 {
	lit, ok := node.(*ast.LiteralNode)
	if !ok {
		return 0
	}
	switch n := lit.Value().(type) {
	case int64:
		return uint64(n)
	case float64:
		return uint64(n)
	case string:
		u, _ := strconv.ParseUint(n, 10, 64)
		return u
	}
	return 0
}

func versionString(major, minor int) string {
	return "HTTP/" + strconv.Itoa(major) + "." + strconv.Itoa(minor)
}

func parseVersion(v string) (major, minor int, ok bool) {
	switch v {
	case "HTTP/1.1":
		return 1, 1, true
	case "HTTP/1.0":
		return 1, 0, true
	}
	return 0, 0, false
}
