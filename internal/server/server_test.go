package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

// startServer serves h on a loopback listener and returns its address and
// a function that shuts the server down. Defer stop after goleak.VerifyNone
// so it runs first.
func startServer(t *testing.T, cfg Config, h Handler) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(cfg, h)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		if err := <-done; !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve() = %v, want ErrServerClosed", err)
		}
	}
}

// roundTrip writes raw to a new connection and reads one response per
// request method given.
func roundTrip(t *testing.T, addr, raw string, methods ...string) ([]*http.Response, []string, *bufio.Reader, net.Conn) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	br := bufio.NewReader(conn)
	var resps []*http.Response
	var bodies []string
	for _, m := range methods {
		resp, err := http.ReadResponse(br, &http.Request{Method: m})
		if err != nil {
			t.Fatalf("response %d: %v", len(resps)+1, err)
		}
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("response %d body: %v", len(resps)+1, err)
		}
		resps = append(resps, resp)
		bodies = append(bodies, string(b))
	}
	return resps, bodies, br, conn
}

func expectEOF(t *testing.T, br *bufio.Reader) {
	t.Helper()
	if b, err := br.ReadByte(); err == nil {
		t.Errorf("expected connection close, read %q", b)
	}
}

func TestServer_Pipelining(t *testing.T) {
	defer goleak.VerifyNone(t)
	addr, stop := startServer(t, Config{}, EchoHandler())
	defer stop()

	raw := "GET /a HTTP/1.1\r\nHost: x\r\n\r\n" +
		"POST /b HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello" +
		"PUT /c HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n3\r\nabc\r\n0\r\n\r\n"

	resps, bodies, br, _ := roundTrip(t, addr, raw, "GET", "POST", "PUT")

	wantFirst := []string{"GET /a HTTP/1.1\n", "POST /b HTTP/1.1\n", "PUT /c HTTP/1.1\n"}
	for i, resp := range resps {
		if resp.StatusCode != http.StatusOK {
			t.Errorf("response %d status = %d", i+1, resp.StatusCode)
		}
		if got, want := resp.Header.Get("X-Request-Id"), string(rune('1'+i)); got != want {
			t.Errorf("response %d X-Request-Id = %q, want %q", i+1, got, want)
		}
		if !strings.HasPrefix(bodies[i], wantFirst[i]) {
			t.Errorf("response %d body = %q, want prefix %q", i+1, bodies[i], wantFirst[i])
		}
	}
	if !strings.HasSuffix(bodies[1], "\n\nhello") {
		t.Errorf("POST body not echoed: %q", bodies[1])
	}
	if !strings.HasSuffix(bodies[2], "\n\nabc") {
		t.Errorf("chunked body not echoed: %q", bodies[2])
	}
	if resps[0].Close || resps[1].Close {
		t.Error("keep-alive responses marked close")
	}
	if !resps[2].Close {
		t.Error("last response should carry Connection: close")
	}
	expectEOF(t, br)
}

func TestServer_SmugglingRejected(t *testing.T) {
	defer goleak.VerifyNone(t)
	addr, stop := startServer(t, Config{}, EchoHandler())
	defer stop()

	raw := "GET /ok HTTP/1.1\r\nHost: x\r\n\r\n" +
		"POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n" +
		"GET /smuggled HTTP/1.1\r\nHost: x\r\n\r\n"

	resps, bodies, br, _ := roundTrip(t, addr, raw, "GET", "POST")
	if resps[0].StatusCode != http.StatusOK || !strings.HasPrefix(bodies[0], "GET /ok ") {
		t.Fatalf("first response = %d %q", resps[0].StatusCode, bodies[0])
	}
	if resps[1].StatusCode != http.StatusBadRequest {
		t.Errorf("second response status = %d, want 400", resps[1].StatusCode)
	}
	if !resps[1].Close {
		t.Error("error response should close the connection")
	}
	expectEOF(t, br)
}

func TestServer_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		raw  string
		want int
	}{
		{
			name: "duplicate content-length",
			raw:  "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 1\r\n\r\nx",
			want: http.StatusBadRequest,
		},
		{
			name: "unknown coding",
			raw:  "POST / HTTP/1.1\r\nTransfer-Encoding: br, chunked\r\n\r\n0\r\n\r\n",
			want: http.StatusNotImplemented,
		},
		{
			name: "header too large",
			cfg:  Config{Parser: ingest.Config{MaxHeaderBytes: 64}},
			raw:  "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 128) + "\r\n\r\n",
			want: http.StatusRequestHeaderFieldsTooLarge,
		},
		{
			name: "body too large",
			cfg:  Config{Parser: ingest.Config{MaxBodyBytes: 4}},
			raw:  "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\n0123456789",
			want: http.StatusRequestEntityTooLarge,
		},
		{
			name: "malformed",
			raw:  "this is not http\r\n\r\n",
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			addr, stop := startServer(t, tt.cfg, EchoHandler())
			defer stop()
			resps, _, br, _ := roundTrip(t, addr, tt.raw, "GET")
			if resps[0].StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resps[0].StatusCode, tt.want)
			}
			expectEOF(t, br)
		})
	}
}

func TestServer_HTTP10(t *testing.T) {
	defer goleak.VerifyNone(t)
	addr, stop := startServer(t, Config{}, EchoHandler())
	defer stop()

	t.Run("close by default", func(t *testing.T) {
		resps, _, br, _ := roundTrip(t, addr, "GET / HTTP/1.0\r\n\r\n", "GET")
		if resps[0].ProtoMinor != 0 {
			t.Errorf("proto = %s, want HTTP/1.0", resps[0].Proto)
		}
		expectEOF(t, br)
	})

	t.Run("keep-alive", func(t *testing.T) {
		raw := "GET /1 HTTP/1.0\r\nConnection: keep-alive\r\n\r\n" +
			"GET /2 HTTP/1.0\r\n\r\n"
		resps, bodies, br, _ := roundTrip(t, addr, raw, "GET", "GET")
		if got := resps[0].Header.Get("Connection"); got != "keep-alive" {
			t.Errorf("Connection = %q, want keep-alive", got)
		}
		if !strings.HasPrefix(bodies[1], "GET /2 ") {
			t.Errorf("second body = %q", bodies[1])
		}
		expectEOF(t, br)
	})
}

func TestServer_Head(t *testing.T) {
	defer goleak.VerifyNone(t)
	addr, stop := startServer(t, Config{}, EchoHandler())
	defer stop()

	raw := "HEAD /h HTTP/1.1\r\n\r\nGET /g HTTP/1.1\r\nConnection: close\r\n\r\n"
	resps, bodies, _, _ := roundTrip(t, addr, raw, "HEAD", "GET")
	if resps[0].ContentLength <= 0 {
		t.Errorf("HEAD Content-Length = %d, want the GET length", resps[0].ContentLength)
	}
	if bodies[0] != "" {
		t.Errorf("HEAD body = %q, want empty", bodies[0])
	}
	if !strings.HasPrefix(bodies[1], "GET /g ") {
		t.Errorf("GET after HEAD = %q", bodies[1])
	}
}

func TestServer_NilResponse(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := HandlerFunc(func(context.Context, *Request) *Response { return nil })
	addr, stop := startServer(t, Config{}, h)
	defer stop()

	resps, _, _, _ := roundTrip(t, addr, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n", "GET")
	if resps[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resps[0].StatusCode)
	}
}

func TestServer_IdleTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	addr, stop := startServer(t, Config{IdleTimeout: 50 * time.Millisecond}, EchoHandler())
	defer stop()

	resps, _, br, _ := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n", "GET")
	if resps[0].StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resps[0].StatusCode)
	}
	expectEOF(t, br)
}

func TestServer_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(Config{}, EchoHandler())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	// An idle keep-alive connection must not hold up shutdown.
	_, _, br, _ := roundTrip(t, ln.Addr().String(), "GET / HTTP/1.1\r\n\r\n", "GET")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve() = %v, want ErrServerClosed", err)
	}
	expectEOF(t, br)

	if err := srv.Serve(context.Background(), ln); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve after Shutdown = %v, want ErrServerClosed", err)
	}
}

func TestServer_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Config{}, EchoHandler())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	_, _, br, _ := roundTrip(t, ln.Addr().String(), "GET / HTTP/1.1\r\n\r\n", "GET")
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve() = %v, want ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	expectEOF(t, br)
}

func TestServer_Tracing(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New(Config{}, EchoHandler())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	raw := "POST /traced HTTP/1.1\r\n" +
		"Traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01\r\n" +
		"Content-Length: 2\r\nConnection: close\r\n\r\nhi"
	_, _, br, _ := roundTrip(t, ln.Addr().String(), raw, "POST")
	expectEOF(t, br)

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	<-done

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "POST /traced" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", span.SpanKind())
	}
	if got := span.Parent().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("parent trace id = %q", got)
	}

	attrs := make(map[string]string)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"http.method":                 "POST",
		"http.target":                 "/traced",
		"http.flavor":                 "HTTP/1.1",
		"http.status_code":            "200",
		"http.request_content_length": "2",
		"ingest.message_id":           "1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
	if attrs["ingest.conn_id"] == "" {
		t.Error("missing ingest.conn_id attribute")
	}
}
