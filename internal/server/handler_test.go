package server

import (
	"context"
	"testing"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

func TestEchoHandler(t *testing.T) {
	req := &Request{
		ID: 7,
		Meta: &ingest.RequestMeta{
			Method:  "POST",
			Target:  "/items?q=1",
			Version: ingest.HTTP11,
			Headers: ingest.Headers{{Key: "Host", Value: "x"}, {Key: "X-A", Value: "b"}},
		},
		Body: []byte("payload"),
	}
	resp := EchoHandler().ServeIngest(context.Background(), req)

	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	want := "POST /items?q=1 HTTP/1.1\nHost: x\nX-A: b\n\npayload"
	if string(resp.Body) != want {
		t.Errorf("Body = %q, want %q", resp.Body, want)
	}
	if got := resp.Headers.Get("X-Request-Id"); got != "7" {
		t.Errorf("X-Request-Id = %q", got)
	}
}

func TestHeaderCarrier(t *testing.T) {
	c := headerCarrier(ingest.Headers{{Key: "Traceparent", Value: "v"}, {Key: "X-B", Value: "w"}})
	if c.Get("traceparent") != "v" {
		t.Errorf("Get = %q", c.Get("traceparent"))
	}
	c.Set("traceparent", "other")
	if c.Get("traceparent") != "v" {
		t.Error("Set modified request headers")
	}
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "traceparent" || keys[1] != "x-b" {
		t.Errorf("Keys = %v", keys)
	}
}
