package fastparser

// String interning for common request tokens.
//
// The Go compiler optimizes map lookups with string([]byte) keys
// to avoid allocating the temporary string (the mapaccess optimization).
// This means internMethod(someBytes) is zero-alloc for known methods, which
// matters when a connection pipelines many small requests.

var methods = map[string]string{
	"GET":     "GET", "HEAD": "HEAD", "POST": "POST",
	"PUT":     "PUT", "DELETE": "DELETE", "CONNECT": "CONNECT",
	"OPTIONS": "OPTIONS", "TRACE": "TRACE", "PATCH": "PATCH",
}

// Request-side field names only; response fields never reach this parser.
var headerNames = map[string]string{
	"Accept":            "Accept",
	"Accept-Charset":    "Accept-Charset",
	"Accept-Encoding":   "Accept-Encoding",
	"Accept-Language":   "Accept-Language",
	"Authorization":     "Authorization",
	"Cache-Control":     "Cache-Control",
	"Connection":        "Connection",
	"Content-Encoding":  "Content-Encoding",
	"Content-Length":    "Content-Length",
	"Content-Type":      "Content-Type",
	"Cookie":            "Cookie",
	"Expect":            "Expect",
	"Host":              "Host",
	"If-Match":          "If-Match",
	"If-Modified-Since": "If-Modified-Since",
	"If-None-Match":     "If-None-Match",
	"Keep-Alive":        "Keep-Alive",
	"Origin":            "Origin",
	"Pragma":            "Pragma",
	"Range":             "Range",
	"Referer":           "Referer",
	"TE":                "TE",
	"Trailer":           "Trailer",
	"Transfer-Encoding": "Transfer-Encoding",
	"Upgrade":           "Upgrade",
	"User-Agent":        "User-Agent",
	"Via":               "Via",
	"X-Forwarded-For":   "X-Forwarded-For",
	"X-Forwarded-Host":  "X-Forwarded-Host",
	"X-Forwarded-Proto": "X-Forwarded-Proto",
	"X-Request-ID":      "X-Request-ID",
	"X-Real-IP":         "X-Real-IP",
	"content-length":    "content-length",
	"transfer-encoding": "transfer-encoding",
	"host":              "host",
}

// internMethod returns an interned string for known HTTP methods, avoiding allocation.
func internMethod(b []byte) string {
	if s, ok := methods[string(b)]; ok {
		return s
	}
	return string(b)
}

// internHeaderName returns an interned string for known header names, avoiding allocation.
func internHeaderName(b []byte) string {
	if s, ok := headerNames[string(b)]; ok {
		return s
	}
	return string(b)
}
