package ingest

import (
	"bytes"
	"strings"
	"testing"
)

func TestAppendRequest(t *testing.T) {
	tests := []struct {
		name string
		meta RequestMeta
		body string
		want string
	}{
		{
			name: "no body",
			meta: RequestMeta{Method: "GET", Target: "/", Version: HTTP11, Headers: hdrs("Host", "a")},
			want: "GET / HTTP/1.1\r\nHost: a\r\n\r\n",
		},
		{
			name: "default version",
			meta: RequestMeta{Method: "GET", Target: "/x"},
			want: "GET /x HTTP/1.1\r\n\r\n",
		},
		{
			name: "content-length added",
			meta: RequestMeta{Method: "POST", Target: "/", Version: HTTP10},
			body: "hello",
			want: "POST / HTTP/1.0\r\nContent-Length: 5\r\n\r\nhello",
		},
		{
			name: "content-length kept",
			meta: RequestMeta{Method: "POST", Target: "/", Version: HTTP11, Headers: hdrs("Content-Length", "5")},
			body: "hello",
			want: "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello",
		},
		{
			name: "chunked",
			meta: RequestMeta{Method: "POST", Target: "/", Version: HTTP11, Headers: hdrs("Transfer-Encoding", "gzip, chunked")},
			body: "0123456789abcdef!",
			want: "POST / HTTP/1.1\r\nTransfer-Encoding: gzip, chunked\r\n\r\n11\r\n0123456789abcdef!\r\n0\r\n\r\n",
		},
		{
			name: "chunked empty",
			meta: RequestMeta{Method: "POST", Target: "/", Version: HTTP11, Headers: hdrs("Transfer-Encoding", "chunked")},
			want: "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppendRequest(nil, &tt.meta, []byte(tt.body))
			if err != nil {
				t.Fatalf("AppendRequest() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("AppendRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendRequest_Errors(t *testing.T) {
	if _, err := AppendRequest(nil, &RequestMeta{Target: "/"}, nil); err == nil {
		t.Error("expected error for empty method")
	}
	if _, err := AppendRequest(nil, &RequestMeta{Method: "GET"}, nil); err == nil {
		t.Error("expected error for empty target")
	}
	if _, err := Marshal(nil); err == nil {
		t.Error("expected error for Marshal(nil)")
	}
}

// Requests written by the encoder parse back to the same request.
func TestEncoder_RoundTrip(t *testing.T) {
	reqs := []Request{
		{Meta: RequestMeta{Method: "GET", Target: "/a", Version: HTTP11, Headers: hdrs("Host", "a")}},
		{Meta: RequestMeta{Method: "POST", Target: "/b", Version: HTTP11, Headers: hdrs("Transfer-Encoding", "chunked")}, Body: []byte("chunked body")},
		{Meta: RequestMeta{Method: "PUT", Target: "/c", Version: HTTP10}, Body: []byte("fixed")},
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i := range reqs {
		if err := enc.Encode(&reqs[i]); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}

	got, err := ReadAll(t.Context(), &buf, DefaultConfig())
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != len(reqs) {
		t.Fatalf("got %d requests, want %d", len(got), len(reqs))
	}
	for i := range reqs {
		if got[i].Meta.Method != reqs[i].Meta.Method || got[i].Meta.Target != reqs[i].Meta.Target {
			t.Errorf("request %d = %s %s", i, got[i].Meta.Method, got[i].Meta.Target)
		}
		if string(got[i].Body) != string(reqs[i].Body) {
			t.Errorf("request %d body = %q, want %q", i, got[i].Body, reqs[i].Body)
		}
	}
	if !strings.Contains(got[2].Meta.Headers.Get("Content-Length"), "5") {
		t.Errorf("Content-Length = %q", got[2].Meta.Headers.Get("Content-Length"))
	}
}
