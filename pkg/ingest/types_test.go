package ingest

import "testing"

func TestHeaders_Lookup(t *testing.T) {
	h := Headers{
		{Key: "Host", Value: "example.com"},
		{Key: "X-Tag", Value: "a"},
		{Key: "x-tag", Value: "b"},
	}

	if got := h.Get("host"); got != "example.com" {
		t.Errorf("Get(host) = %q, want example.com", got)
	}
	if got := h.Get("Missing"); got != "" {
		t.Errorf("Get(Missing) = %q, want empty", got)
	}
	if got := h.Values("X-TAG"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Values(X-TAG) = %v, want [a b]", got)
	}
	if got := h.Count("x-tag"); got != 2 {
		t.Errorf("Count(x-tag) = %d, want 2", got)
	}
	if !h.Has("HOST") || h.Has("Content-Length") {
		t.Error("Has() mismatch")
	}
}

func TestHeaders_AddClone(t *testing.T) {
	var h Headers
	h.Add("A", "1")
	h.Add("A", "2")
	if len(h) != 2 {
		t.Fatalf("len = %d, want 2", len(h))
	}

	c := h.Clone()
	c[0].Value = "changed"
	if h[0].Value != "1" {
		t.Error("Clone() shares backing array")
	}

	var empty Headers
	if empty.Clone() != nil {
		t.Error("Clone() of nil headers is not nil")
	}
}

func TestVersion(t *testing.T) {
	if HTTP11.String() != "HTTP/1.1" {
		t.Errorf("HTTP11.String() = %q", HTTP11.String())
	}
	if HTTP10.String() != "HTTP/1.0" {
		t.Errorf("HTTP10.String() = %q", HTTP10.String())
	}

	for _, s := range []string{"HTTP/1.0", "HTTP/1.1"} {
		v, ok := ParseVersion(s)
		if !ok || v.String() != s {
			t.Errorf("ParseVersion(%q) = %v, %v", s, v, ok)
		}
	}
	for _, s := range []string{"HTTP/2.0", "HTTP/1.2", "http/1.1", ""} {
		if _, ok := ParseVersion(s); ok {
			t.Errorf("ParseVersion(%q) accepted", s)
		}
	}
}

func TestRequestMeta_KeepAlive(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		headers Headers
		want    bool
	}{
		{"1.1 default", HTTP11, nil, true},
		{"1.1 close", HTTP11, Headers{{Key: "Connection", Value: "close"}}, false},
		{"1.1 close in list", HTTP11, Headers{{Key: "connection", Value: "Upgrade, Close"}}, false},
		{"1.0 default", HTTP10, nil, false},
		{"1.0 keep-alive", HTTP10, Headers{{Key: "Connection", Value: "Keep-Alive"}}, true},
		{"1.0 keep-alive and close", HTTP10, Headers{{Key: "Connection", Value: "keep-alive"}, {Key: "Connection", Value: "close"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &RequestMeta{Method: "GET", Target: "/", Version: tt.version, Headers: tt.headers}
			if got := m.KeepAlive(); got != tt.want {
				t.Errorf("KeepAlive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	if ReceivingBody.String() != "receiving-body" || Complete.String() != "complete" {
		t.Errorf("State strings = %q, %q", ReceivingBody, Complete)
	}
	if State(9).String() != "unknown(9)" {
		t.Errorf("State(9).String() = %q", State(9).String())
	}
}
