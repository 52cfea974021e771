package ingest

import (
	"bytes"
	"context"
	"io"
	"strconv"
)

// State is the completion state of a request.
type State uint8

const (
	// ReceivingBody means body bytes may still arrive.
	ReceivingBody State = iota
	// Complete means the whole body has been received.
	Complete
)

func (s State) String() string {
	switch s {
	case ReceivingBody:
		return "receiving-body"
	case Complete:
		return "complete"
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// Message is one request of a connection. It owns its body buffer until the
// Parser releases it.
type Message struct {
	id       uint64
	meta     RequestMeta
	state    State
	body     bytes.Buffer
	received int64
	parser   *Parser
}

func newMessage(p *Parser, id uint64, meta RequestMeta) *Message {
	return &Message{id: id, meta: meta, parser: p}
}

// ID returns the 1-based position of the request on its connection.
func (m *Message) ID() uint64 { return m.id }

// Meta returns the validated request line and headers.
func (m *Message) Meta() *RequestMeta { return &m.meta }

// Method returns the request method.
func (m *Message) Method() string { return m.meta.Method }

// Target returns the raw request-target.
func (m *Message) Target() string { return m.meta.Target }

// Version returns the request's HTTP version.
func (m *Message) Version() Version { return m.meta.Version }

// Headers returns the request headers as received.
func (m *Message) Headers() Headers { return m.meta.Headers }

// State returns the completion state.
func (m *Message) State() State { return m.state }

// IsComplete reports whether the whole body has been received.
func (m *Message) IsComplete() bool { return m.state == Complete }

// BodyLen returns the number of body bytes received so far.
func (m *Message) BodyLen() int64 { return m.received }

// Body returns a reader over the request body. Reads return buffered bytes
// first; while the request is still receiving its body they read more from
// the connection through the owning Parser, and they return io.EOF once the
// request is complete and drained.
func (m *Message) Body() io.Reader {
	return m.BodyContext(context.Background())
}

// BodyContext is like Body but checks ctx between reads from the connection.
func (m *Message) BodyContext(ctx context.Context) io.Reader {
	return &bodyReader{msg: m, ctx: ctx}
}

func (m *Message) write(p []byte) {
	m.body.Write(p)
	m.received += int64(len(p))
}

// discard drops the body buffer. A request discarded before completion
// reports the parser's error from its body reader.
func (m *Message) discard() {
	m.body = bytes.Buffer{}
}

type bodyReader struct {
	msg *Message
	ctx context.Context
}

func (r *bodyReader) Read(p []byte) (int, error) {
	m := r.msg
	for m.body.Len() == 0 {
		if m.state == Complete {
			return 0, io.EOF
		}
		if err := m.parser.err; err != nil {
			return 0, err
		}
		if err := m.parser.readMore(r.ctx); err != nil {
			return 0, err
		}
	}
	return m.body.Read(p)
}
