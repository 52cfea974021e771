// Package tokenizer splits HTTP/1.x request lines using Shape's tokenizer
// framework.
package tokenizer

// Token kinds produced for a request line.
const (
	TokenMethod  = "Method"  // run of tchar, e.g. GET or PURGE
	TokenTarget  = "Target"  // run of other visible bytes, part of a request-target
	TokenVersion = "Version" // HTTP/DIGIT.DIGIT
	TokenSP      = "SP"
	TokenEOL     = "EOL" // \r\n, \r or \n; never valid inside a request line
)
