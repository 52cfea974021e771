package fastparser

import (
	"bytes"
	"strconv"
)

// EventKind identifies what a Scanner produced.
type EventKind uint8

const (
	// EventNeedMore means the buffered input holds no further complete event.
	EventNeedMore EventKind = iota
	// EventHeadersComplete carries a parsed request line and header fields.
	EventHeadersComplete
	// EventBody carries decoded body bytes of the current message.
	EventBody
	// EventMessageComplete ends the current message.
	EventMessageComplete
)

func (k EventKind) String() string {
	switch k {
	case EventNeedMore:
		return "need-more"
	case EventHeadersComplete:
		return "headers-complete"
	case EventBody:
		return "body"
	case EventMessageComplete:
		return "message-complete"
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Event is one step of the tokenizer's output.
type Event struct {
	Kind EventKind
	Head *Head  // set for EventHeadersComplete
	Body []byte // set for EventBody; valid until the next Write
}

type scanState uint8

const (
	stateHead scanState = iota
	stateFraming
	stateFixedBody
	stateChunked
	stateComplete
)

// Scanner turns a pipelined request byte stream into events.
//
// Bytes are appended with Write and events are pulled with Next, one at a
// time, so the caller decides what happens between a header block and the
// body that follows it. A Scanner is not safe for concurrent use.
type Scanner struct {
	buf            []byte
	off            int
	headScan       int // bytes of the pending header block already searched
	state          scanState
	maxHeaderBytes int
	head           *Head
	remaining      int64
	chunks         chunkDecoder
}

// NewScanner returns a Scanner rejecting header blocks longer than maxHeaderBytes.
func NewScanner(maxHeaderBytes int) *Scanner {
	return &Scanner{maxHeaderBytes: maxHeaderBytes}
}

// Write appends p to the unscanned input. Body slices handed out by earlier
// events may be overwritten.
func (s *Scanner) Write(p []byte) {
	if s.off > 0 {
		n := copy(s.buf, s.buf[s.off:])
		s.buf = s.buf[:n]
		s.off = 0
	}
	s.buf = append(s.buf, p...)
}

// Buffered returns the number of bytes written but not yet consumed.
func (s *Scanner) Buffered() int {
	return len(s.buf) - s.off
}

// InMessage reports whether a header block has been emitted whose message
// has not completed yet.
func (s *Scanner) InMessage() bool {
	return s.state != stateHead
}

// Reset discards buffered input and any partially scanned message.
func (s *Scanner) Reset() {
	*s = Scanner{buf: s.buf[:0], maxHeaderBytes: s.maxHeaderBytes}
}

// Next returns the next event from the buffered input. EventNeedMore means
// Write must be called before more progress is possible. Errors are fatal:
// the byte stream cannot be resynchronized.
func (s *Scanner) Next() (Event, error) {
	for {
		data := s.buf[s.off:]

		switch s.state {
		case stateHead:
			// RFC 9112 2.2: empty lines before a request-line are ignored
			for s.headScan == 0 && len(data) > 0 {
				if data[0] == '\n' {
					s.off++
				} else if data[0] == '\r' {
					if len(data) < 2 {
						return Event{}, nil
					}
					if data[1] != '\n' {
						return Event{}, syntaxErrorf("bare CR before request line")
					}
					s.off += 2
				} else {
					break
				}
				data = s.buf[s.off:]
			}

			end := s.headEnd(data)
			if end < 0 {
				if len(data) > s.maxHeaderBytes {
					return Event{}, ErrHeaderTooLarge
				}
				return Event{}, nil
			}
			if end > s.maxHeaderBytes {
				return Event{}, ErrHeaderTooLarge
			}

			head, err := NewParser(data[:end]).ParseHead()
			if err != nil {
				return Event{}, err
			}
			s.off += end
			s.headScan = 0
			s.head = head
			s.state = stateFraming
			return Event{Kind: EventHeadersComplete, Head: head}, nil

		case stateFraming:
			if err := s.frame(); err != nil {
				return Event{}, err
			}

		case stateFixedBody:
			if s.remaining == 0 {
				s.state = stateComplete
				continue
			}
			if len(data) == 0 {
				return Event{}, nil
			}
			n := int64(len(data))
			if n > s.remaining {
				n = s.remaining
			}
			s.off += int(n)
			s.remaining -= n
			return Event{Kind: EventBody, Body: data[:n]}, nil

		case stateChunked:
			chunk, n, done, err := s.chunks.decode(data)
			s.off += n
			if err != nil {
				return Event{}, err
			}
			if done {
				s.state = stateComplete
				continue
			}
			if len(chunk) == 0 {
				return Event{}, nil
			}
			return Event{Kind: EventBody, Body: chunk}, nil

		case stateComplete:
			s.state = stateHead
			return Event{Kind: EventMessageComplete}, nil
		}
	}
}

// headEnd returns the length of the header block at the front of data,
// terminating empty line included, or -1 if the block is incomplete.
func (s *Scanner) headEnd(data []byte) int {
	pos := s.headScan
	for {
		i := bytes.IndexByte(data[pos:], '\n')
		if i < 0 {
			s.headScan = pos
			return -1
		}
		lineEnd := pos + i
		line := data[pos:lineEnd]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 && pos > 0 {
			return lineEnd + 1
		}
		pos = lineEnd + 1
	}
}

// frame decides how the body of the pending head is delimited: chunked when
// the final transfer-coding is chunked, else by Content-Length, else empty.
func (s *Scanner) frame() error {
	headers := s.head.Headers
	s.head = nil

	if FinalCoding(headers) == "chunked" {
		s.chunks.reset(s.maxHeaderBytes)
		s.state = stateChunked
		return nil
	}

	if v, ok := ContentLength(headers); ok {
		n, err := ParseContentLength(v)
		if err != nil {
			return syntaxErrorf("invalid Content-Length %q", v)
		}
		s.remaining = n
		s.state = stateFixedBody
		return nil
	}

	s.state = stateComplete
	return nil
}

// ParseContentLength parses a decimal Content-Length of digits only.
func ParseContentLength(v string) (int64, error) {
	if v == "" {
		return 0, strconv.ErrSyntax
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(v, 10, 64)
}
