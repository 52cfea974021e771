// Package server accepts HTTP/1.1 connections and drives one ingest.Parser
// per connection. Requests on a connection are handled one at a time in
// arrival order; pipelined requests wait in the parser until the response
// to every earlier request has been written.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

// ErrServerClosed is returned by Serve after Shutdown or Close.
var ErrServerClosed = errors.New("server: closed")

const (
	lingerTimeout = 500 * time.Millisecond
	lingerBytes   = 256 << 10
)

// Config holds the connection-level settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration // Per read while a request is in progress
	IdleTimeout  time.Duration // Per read while waiting for the next request
	WriteTimeout time.Duration // Per response write
	Parser       ingest.Config
	Logger       *zap.Logger
	TracerName   string
}

// Server serves ingested requests to a Handler.
type Server struct {
	cfg     Config
	handler Handler
	logger  *zap.Logger
	tracing tracing
	bufs    sync.Pool

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Server. A nil logger is replaced by a no-op logger.
func New(cfg Config, h Handler) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Parser.Logger == nil {
		cfg.Parser.Logger = logger
	}
	return &Server{
		cfg:     cfg,
		handler: h,
		logger:  logger.Named("server"),
		tracing: newTracing(cfg.TracerName),
		bufs: sync.Pool{New: func() any {
			b := make([]byte, 0, 4096)
			return &b
		}},
		conns: make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on cfg.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or the server is shut
// down. It waits for every connection goroutine before returning
// ErrServerClosed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				s.wg.Wait()
				return ErrServerClosed
			}
			s.wg.Wait()
			return err
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

// Shutdown stops accepting connections, interrupts connections waiting
// for a request and waits for in-flight responses to be written. If ctx
// ends first the remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	for c := range s.conns {
		_ = c.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		_ = s.Close()
		<-done
		return ctx.Err()
	}
}

// Close stops the listener and closes every connection immediately.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	if ln != nil {
		return ignoreClosed(ln.Close())
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers an accepted connection. It reports false if the server
// is already closed.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// armDeadline sets the next read deadline. Holding mu orders it against
// Shutdown, which pulls every deadline to now.
func (s *Server) armDeadline(conn net.Conn, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if d <= 0 {
		return conn.SetReadDeadline(time.Time{})
	}
	return conn.SetReadDeadline(time.Now().Add(d))
}

// connReader re-arms the read deadline before every read.
type connReader struct {
	srv     *Server
	conn    net.Conn
	timeout time.Duration
}

func (r *connReader) Read(b []byte) (int, error) {
	if err := r.srv.armDeadline(r.conn, r.timeout); err != nil {
		return 0, err
	}
	return r.conn.Read(b)
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	connID := uuid.NewString()
	logger := s.logger.With(
		zap.String("conn_id", connID),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	logger.Debug("connection opened")

	pcfg := s.cfg.Parser
	pcfg.ConnID = connID
	rd := &connReader{srv: s, conn: conn}
	p := ingest.NewParser(rd, pcfg)
	defer p.Close()

	for served := 0; ; served++ {
		rd.timeout = s.cfg.IdleTimeout
		msg, err := p.NextRequest(ctx)
		if err != nil {
			s.reject(conn, err, logger)
			return
		}

		rd.timeout = s.cfg.ReadTimeout
		keepAlive, err := s.serveRequest(ctx, conn, p, msg, connID)
		if err != nil {
			s.reject(conn, err, logger)
			return
		}
		if !keepAlive || s.isClosed() {
			logger.Debug("connection done", zap.Int("served", served+1))
			return
		}
	}
}

// serveRequest drains the body, calls the handler and writes the response.
// It reports whether the connection stays open.
func (s *Server) serveRequest(ctx context.Context, conn net.Conn, p *ingest.Parser, msg *ingest.Message, connID string) (bool, error) {
	ctx, span := s.tracing.start(ctx, msg, connID)
	defer span.End()

	body, err := io.ReadAll(msg.BodyContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	resp := s.handler.ServeIngest(ctx, &Request{
		ID:     msg.ID(),
		ConnID: connID,
		Meta:   msg.Meta(),
		Body:   body,
	})
	if resp == nil {
		resp = &Response{StatusCode: http.StatusInternalServerError}
	}
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("http.request_content_length", len(body)),
	)
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	keepAlive := msg.Meta().KeepAlive() && !s.isClosed()
	bp := s.bufs.Get().(*[]byte)
	buf := appendResponse((*bp)[:0], msg.Version(), resp, keepAlive, msg.Method() != http.MethodHead)
	err = s.write(conn, buf)
	*bp = buf
	s.bufs.Put(bp)
	if err != nil {
		span.RecordError(err)
		return false, &ingest.TransportError{Err: err}
	}

	p.AdvanceAfterResponse()
	return keepAlive, nil
}

func (s *Server) write(conn net.Conn, b []byte) error {
	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write(b)
	return err
}

// reject ends a connection after a parse or transport failure. Protocol
// errors get an error response; every response for earlier requests has
// already been written at this point.
func (s *Server) reject(conn net.Conn, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, ingest.ErrConnectionClosed):
		logger.Debug("connection closed by peer")
	case ingest.IsProtocolError(err):
		resp := errorResponse(err)
		buf := appendResponse(nil, ingest.HTTP11, resp, false, true)
		if werr := s.write(conn, buf); werr != nil {
			logger.Debug("error response not sent", zap.Error(werr))
			return
		}
		logger.Debug("connection rejected", zap.Int("status", resp.StatusCode), zap.Error(err))
		lingerClose(conn)
	default:
		logger.Debug("connection ended", zap.Error(err))
	}
}

// lingerClose half-closes the connection and discards what the peer is
// still sending, so the error response is not lost to a reset.
func lingerClose(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.CopyN(io.Discard, conn, lingerBytes)
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
