package tokenizer

import (
	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// NewTokenizer creates a request-line tokenizer. Spaces are structural, so
// the default whitespace skipper is disabled. Matchers run in order: line
// breaks, SP, the version, method tokens, then anything else visible as
// target text. A request-target like "abc/def" therefore arrives as several
// adjacent tokens that the caller joins.
func NewTokenizer() tokenizer.Tokenizer {
	return tokenizer.NewTokenizerWithoutWhitespace(
		EOLMatcher(),
		tokenizer.StringMatcherFunc(TokenSP, " "),
		VersionMatcher(),
		MethodMatcher(),
		TargetMatcher(),
	)
}

// EOLMatcher matches \r\n, a bare \r or a bare \n.
func EOLMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		r, ok := stream.PeekChar()
		if !ok || (r != '\r' && r != '\n') {
			return nil
		}
		stream.NextChar()
		if r == '\n' {
			return tokenizer.NewToken(TokenEOL, []rune{'\n'})
		}
		if r2, ok := stream.PeekChar(); ok && r2 == '\n' {
			stream.NextChar()
			return tokenizer.NewToken(TokenEOL, []rune{'\r', '\n'})
		}
		return tokenizer.NewToken(TokenEOL, []rune{'\r'})
	}
}

// VersionMatcher matches exactly "HTTP/" DIGIT "." DIGIT followed by a
// separator or the end of input.
func VersionMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		value := make([]rune, 0, 8)
		for _, want := range "HTTP/" {
			r, ok := stream.PeekChar()
			if !ok || r != want {
				return nil
			}
			stream.NextChar()
			value = append(value, r)
		}

		for _, class := range []func(rune) bool{isDigit, isDot, isDigit} {
			r, ok := stream.PeekChar()
			if !ok || !class(r) {
				return nil
			}
			stream.NextChar()
			value = append(value, r)
		}

		if r, ok := stream.PeekChar(); ok && !isSeparator(r) {
			return nil
		}
		return tokenizer.NewToken(TokenVersion, value)
	}
}

// MethodMatcher matches a run of tchar (RFC 9110 token characters).
func MethodMatcher() tokenizer.Matcher {
	return runMatcher(TokenMethod, isTchar)
}

// TargetMatcher matches a run of visible bytes that are not tchar.
func TargetMatcher() tokenizer.Matcher {
	return runMatcher(TokenTarget, func(r rune) bool {
		return !isSeparator(r) && !isTchar(r)
	})
}

func runMatcher(kind string, accept func(rune) bool) tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune
		for {
			r, ok := stream.PeekChar()
			if !ok || !accept(r) {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}
		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(kind, value)
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isDot(r rune) bool { return r == '.' }

func isSeparator(r rune) bool { return r == ' ' || r == '\r' || r == '\n' }

func isTchar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', isDigit(r):
		return true
	}
	switch r {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
