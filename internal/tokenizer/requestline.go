package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRequestLine is returned for request lines that do not split into
// exactly "method SP request-target SP HTTP-version".
var ErrRequestLine = errors.New("malformed request line")

// RequestLine is a request line split into its three parts.
// Version is the raw version token, e.g. "HTTP/1.1".
type RequestLine struct {
	Method  string
	Target  string
	Version string
}

// SplitRequestLine tokenizes line (without its line ending) and splits it
// into method, request-target and version.
//
// The method must be a single Method token and the version a single Version
// token; every token between the two spaces is joined into the target.
func SplitRequestLine(line string) (RequestLine, error) {
	tok := NewTokenizer()
	tok.Initialize(line)

	tokens, eos := tok.Tokenize()
	if !eos {
		return RequestLine{}, fmt.Errorf("%w: unrecognized input in %q", ErrRequestLine, line)
	}

	var (
		rl     RequestLine
		target strings.Builder
		field  int
	)
	for _, t := range tokens {
		kind, value := t.Kind(), t.ValueString()
		if kind == TokenEOL {
			return RequestLine{}, fmt.Errorf("%w: embedded line break", ErrRequestLine)
		}
		if kind == TokenSP {
			field++
			if field > 2 {
				return RequestLine{}, fmt.Errorf("%w: too many separators", ErrRequestLine)
			}
			continue
		}
		switch field {
		case 0:
			if kind != TokenMethod || rl.Method != "" {
				return RequestLine{}, fmt.Errorf("%w: bad method", ErrRequestLine)
			}
			rl.Method = value
		case 1:
			target.WriteString(value)
		case 2:
			if kind != TokenVersion || rl.Version != "" {
				return RequestLine{}, fmt.Errorf("%w: bad version %q", ErrRequestLine, value)
			}
			rl.Version = value
		}
	}

	rl.Target = target.String()
	if rl.Method == "" {
		return RequestLine{}, fmt.Errorf("%w: empty method", ErrRequestLine)
	}
	if rl.Target == "" {
		return RequestLine{}, fmt.Errorf("%w: empty request target", ErrRequestLine)
	}
	if rl.Version == "" {
		return RequestLine{}, fmt.Errorf("%w: missing version", ErrRequestLine)
	}
	return rl, nil
}
