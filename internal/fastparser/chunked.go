package fastparser

import (
	"bytes"
	"encoding/hex"
)

// maxChunkLineLen bounds a chunk-size line, extensions included.
const maxChunkLineLen = 4096

type chunkState uint8

const (
	chunkSize chunkState = iota
	chunkData
	chunkDataEnd
	chunkTrailer
)

// chunkDecoder decodes a chunked transfer-encoded body incrementally.
//
// Format: hex-size [;ext] CRLF data CRLF ... 0 CRLF [trailers] CRLF
// Chunk extensions after ';' are ignored, trailer fields are discarded.
type chunkDecoder struct {
	state        chunkState
	remaining    int64
	trailerBytes int
	maxTrailer   int
}

func (d *chunkDecoder) reset(maxTrailer int) {
	*d = chunkDecoder{maxTrailer: maxTrailer}
}

// decode consumes framing from data until it can hand back chunk data, hits
// the terminating empty line, or runs out of input. n is the number of bytes
// of data consumed; chunk aliases data.
func (d *chunkDecoder) decode(data []byte) (chunk []byte, n int, done bool, err error) {
	for {
		rest := data[n:]

		switch d.state {
		case chunkSize:
			lineEnd := findLineEnd(rest, 0)
			if lineEnd < 0 {
				if len(rest) > maxChunkLineLen {
					return nil, n, false, syntaxErrorf("chunked encoding: chunk size line too long")
				}
				return nil, n, false, nil
			}
			if lineEnd > maxChunkLineLen {
				return nil, n, false, syntaxErrorf("chunked encoding: chunk size line too long")
			}

			sizeLine := rest[:lineEnd]
			n += skipLineEnding(rest, lineEnd)

			// Strip chunk extension (everything after ';')
			if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
				sizeLine = sizeLine[:semi]
			}
			sizeLine = bytes.Trim(sizeLine, " \t")

			size, perr := parseHexSize(sizeLine)
			if perr != nil {
				return nil, n, false, syntaxErrorf("chunked encoding: invalid chunk size %q: %v", sizeLine, perr)
			}
			if size == 0 {
				d.state = chunkTrailer
				continue
			}
			d.remaining = size
			d.state = chunkData

		case chunkData:
			if len(rest) == 0 {
				return nil, n, false, nil
			}
			k := int64(len(rest))
			if k > d.remaining {
				k = d.remaining
			}
			d.remaining -= k
			if d.remaining == 0 {
				d.state = chunkDataEnd
			}
			return rest[:k], n + int(k), false, nil

		case chunkDataEnd:
			if len(rest) == 0 {
				return nil, n, false, nil
			}
			switch {
			case rest[0] == '\n':
				n++
			case rest[0] == '\r':
				if len(rest) < 2 {
					return nil, n, false, nil
				}
				if rest[1] != '\n' {
					return nil, n, false, syntaxErrorf("chunked encoding: expected CRLF after chunk data, got %q", rest[1])
				}
				n += 2
			default:
				return nil, n, false, syntaxErrorf("chunked encoding: expected CRLF after chunk data, got %q", rest[0])
			}
			d.state = chunkSize

		case chunkTrailer:
			lineEnd := findLineEnd(rest, 0)
			if lineEnd < 0 {
				if d.trailerBytes+len(rest) > d.maxTrailer {
					return nil, n, false, ErrHeaderTooLarge
				}
				return nil, n, false, nil
			}
			line := rest[:lineEnd]
			consumed := skipLineEnding(rest, lineEnd)
			n += consumed
			if len(line) == 0 {
				return nil, n, true, nil
			}
			d.trailerBytes += consumed
			if d.trailerBytes > d.maxTrailer {
				return nil, n, false, ErrHeaderTooLarge
			}
			if bytes.IndexByte(line, ':') <= 0 {
				return nil, n, false, syntaxErrorf("chunked encoding: malformed trailer field %q", line)
			}
		}
	}
}

// findLineEnd finds the position of \r\n or \n starting from pos.
// Returns the position of \r (or \n if bare), or -1 if not found.
func findLineEnd(data []byte, pos int) int {
	for i := pos; i < len(data); i++ {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i
		}
		if data[i] == '\n' {
			return i
		}
	}
	return -1
}

// skipLineEnding advances past CRLF or LF at the given position.
func skipLineEnding(data []byte, pos int) int {
	if pos < len(data) && data[pos] == '\r' && pos+1 < len(data) && data[pos+1] == '\n' {
		return pos + 2
	}
	if pos < len(data) && data[pos] == '\n' {
		return pos + 1
	}
	return pos
}

// parseHexSize parses a chunk size. At most 15 hex digits are accepted so
// the result always fits in an int64.
func parseHexSize(s []byte) (int64, error) {
	if len(s) == 0 {
		return 0, hex.ErrLength
	}
	if len(s) > 15 {
		return 0, errChunkSizeTooLarge
	}
	var n int64
	for _, c := range s {
		n <<= 4
		switch {
		case c >= '0' && c <= '9':
			n |= int64(c - '0')
		case c >= 'a' && c <= 'f':
			n |= int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			n |= int64(c-'A') + 10
		default:
			return 0, hex.InvalidByteError(c)
		}
	}
	return n, nil
}
