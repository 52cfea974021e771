package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/shapestone/shape-ingest/internal/fastparser"
)

// maxEmptyReads is how many consecutive (0, nil) reads are tolerated before
// the reader is considered broken.
const maxEmptyReads = 100

var errParserClosed = errors.New("ingest: parser closed")

// Parser turns the byte stream of one connection into requests.
//
// Bytes are pushed through a fastparser.Scanner and its events are
// dispatched one at a time: a header block is validated and becomes a
// Message, body bytes go to the message currently receiving a body, and a
// completed message is queued for a response.
//
// Errors are sticky. Once a Parser fails, requests that were already
// complete can still be retrieved with NextRequest; after that every call
// returns the same error.
type Parser struct {
	r          io.Reader
	cfg        Config
	logger     *zap.Logger
	metrics    *Metrics
	scanner    *fastparser.Scanner
	seq        sequencer
	buf        []byte
	lastID     uint64
	emptyReads int
	err        error
}

// NewParser creates a parser reading requests from r. cfg is normalized
// with Config.Normalize.
func NewParser(r io.Reader, cfg Config) *Parser {
	cfg.Normalize()

	logger := cfg.Logger.Named("parser")
	if cfg.ConnID != "" {
		logger = logger.With(zap.String("conn_id", cfg.ConnID))
	}

	return &Parser{
		r:       r,
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Metrics,
		scanner: fastparser.NewScanner(cfg.MaxHeaderBytes),
		buf:     make([]byte, cfg.BufferSize),
	}
}

// Feed hands bytes received from the connection to the parser. Every event
// the buffered bytes allow is processed before Feed returns, so one call
// may accept several pipelined requests.
func (p *Parser) Feed(b []byte) error {
	if p.err != nil {
		return p.err
	}
	p.scanner.Write(b)
	return p.dispatch()
}

// NextRequest returns the request the caller should work on next: the
// oldest complete request awaiting a response, or else the request whose
// body is being received. It reads from the connection until one exists.
//
// A read of zero bytes at end of input returns ErrConnectionClosed; other
// read failures and cancellation of ctx return a *TransportError. ctx is
// checked between reads; the connection layer aborts a blocked read with
// a deadline.
func (p *Parser) NextRequest(ctx context.Context) (*Message, error) {
	for {
		if m := p.seq.current(); m != nil {
			return m, nil
		}
		if p.err != nil {
			return nil, p.err
		}
		if err := p.readMore(ctx); err != nil {
			return nil, err
		}
	}
}

// AdvanceAfterResponse releases the request whose response has been
// written and promotes the next complete request. It returns the released
// request, or nil if no request was awaiting a response.
func (p *Parser) AdvanceAfterResponse() *Message {
	m := p.seq.release()
	if m == nil {
		return nil
	}
	m.discard()
	p.logger.Debug("request released", zap.Uint64("message_id", m.id))
	return m
}

// Err returns the error that stopped the parser, if any.
func (p *Parser) Err() error {
	if errors.Is(p.err, errParserClosed) {
		return nil
	}
	return p.err
}

// Close drops every held request. Later calls fail.
func (p *Parser) Close() error {
	p.seq.reset()
	p.scanner.Reset()
	if p.err == nil {
		p.err = errParserClosed
	}
	return nil
}

// inMessage reports whether a partial request is buffered.
func (p *Parser) inMessage() bool {
	return p.scanner.InMessage() || p.scanner.Buffered() > 0
}

// readMore performs one read from the connection and feeds the result. A
// rejection in the fed bytes is only recorded in p.err; requests the same
// bytes completed are delivered before it.
func (p *Parser) readMore(ctx context.Context) error {
	if p.err != nil {
		return p.err
	}
	if err := ctx.Err(); err != nil {
		return p.fail(&TransportError{Err: err})
	}
	if p.r == nil {
		return p.fail(ErrConnectionClosed)
	}

	n, err := p.r.Read(p.buf)
	if n > 0 {
		p.emptyReads = 0
		if p.Feed(p.buf[:n]) != nil {
			return nil
		}
	}

	switch {
	case err == nil:
		if n == 0 {
			p.emptyReads++
			if p.emptyReads >= maxEmptyReads {
				return p.fail(&TransportError{Err: io.ErrNoProgress})
			}
		}
		return nil
	case errors.Is(err, io.EOF):
		if n > 0 {
			return nil
		}
		return p.fail(ErrConnectionClosed)
	default:
		return p.fail(&TransportError{Err: err})
	}
}

// dispatch drains the scanner, handling one event at a time.
func (p *Parser) dispatch() error {
	for {
		ev, err := p.scanner.Next()
		if err != nil {
			return p.fail(scanError(err))
		}

		switch ev.Kind {
		case fastparser.EventNeedMore:
			return nil
		case fastparser.EventHeadersComplete:
			if err := p.onHeadersComplete(ev.Head); err != nil {
				return p.fail(err)
			}
		case fastparser.EventBody:
			if err := p.onBody(ev.Body); err != nil {
				return p.fail(err)
			}
		case fastparser.EventMessageComplete:
			p.onMessageComplete()
		}
	}
}

func (p *Parser) onHeadersComplete(head *fastparser.Head) error {
	headers := make(Headers, len(head.Headers))
	for i, h := range head.Headers {
		headers[i] = Header(h)
	}

	if err := ValidateHeaders(headers); err != nil {
		return err
	}
	if p.seq.depth() >= p.cfg.MaxPipelined {
		return protocolError(ErrTooManyPipelined, "limit "+strconv.Itoa(p.cfg.MaxPipelined))
	}
	if v := headers.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err != nil || n > p.cfg.MaxBodyBytes {
			return protocolError(ErrBodyTooLarge, fmt.Sprintf("Content-Length %s exceeds %d", v, p.cfg.MaxBodyBytes))
		}
	}

	p.lastID++
	m := newMessage(p, p.lastID, RequestMeta{
		Method:  head.Method,
		Target:  head.Target,
		Version: Version{Major: head.Major, Minor: head.Minor},
		Headers: headers,
	})
	p.seq.accept(m)

	if p.metrics != nil {
		p.metrics.MessagesAccepted.Inc()
		p.metrics.PipelineDepth.Observe(float64(p.seq.depth()))
	}
	p.logger.Debug("request accepted",
		zap.Uint64("message_id", m.id),
		zap.String("method", m.meta.Method),
		zap.String("target", m.meta.Target),
	)
	return nil
}

func (p *Parser) onBody(b []byte) error {
	m := p.seq.activeRead
	if m == nil {
		panic("ingest: body bytes with no request receiving a body")
	}
	if m.received+int64(len(b)) > p.cfg.MaxBodyBytes {
		return protocolError(ErrBodyTooLarge, fmt.Sprintf("limit %d", p.cfg.MaxBodyBytes))
	}
	m.write(b)
	if p.metrics != nil {
		p.metrics.BodyBytes.Add(float64(len(b)))
	}
	return nil
}

func (p *Parser) onMessageComplete() {
	m := p.seq.complete()
	if m == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.MessagesCompleted.Inc()
	}
	p.logger.Debug("request complete",
		zap.Uint64("message_id", m.id),
		zap.Int64("body_bytes", m.received),
	)
}

// fail makes err sticky and drops every request still receiving a body.
func (p *Parser) fail(err error) error {
	if p.err != nil {
		return p.err
	}
	p.err = err
	p.seq.discardIncomplete()

	switch {
	case errors.Is(err, ErrConnectionClosed):
		p.logger.Debug("connection closed by peer")
		return err
	case IsProtocolError(err):
		p.logger.Warn("request rejected", zap.Uint64("accepted", p.lastID), zap.Error(err))
	default:
		p.logger.Debug("transport failure", zap.Error(err))
	}
	if p.metrics != nil {
		p.metrics.Rejections.WithLabelValues(reason(err)).Inc()
	}
	return err
}

// scanError maps a scanner failure to a protocol error.
func scanError(err error) error {
	if errors.Is(err, fastparser.ErrHeaderTooLarge) {
		return protocolError(ErrHeaderTooLarge, "")
	}
	return protocolError(ErrMalformedMessage, err.Error())
}
