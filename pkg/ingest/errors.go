package ingest

import (
	"errors"
	"fmt"
)

// Protocol violations. Each is fatal to the connection and is returned
// wrapped in a *ProtocolError.
var (
	// ErrMalformedMessage is a grammar violation in the request line, a
	// header line or the chunked framing.
	ErrMalformedMessage = errors.New("malformed message")

	ErrDuplicateContentLength              = errors.New("duplicate Content-Length")
	ErrInvalidContentLength                = errors.New("invalid Content-Length")
	ErrMisorderedTransferEncoding          = errors.New("misordered Transfer-Encoding")
	ErrUnknownTransferEncoding             = errors.New("unknown Transfer-Encoding")
	ErrChunkedNotFinal                     = errors.New("chunked is not the final Transfer-Encoding")
	ErrConflictingLengthAndChunkedEncoding = errors.New("both Content-Length and chunked Transfer-Encoding")

	ErrTooManyPipelined = errors.New("too many pipelined requests")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrHeaderTooLarge   = errors.New("request header block too large")
)

// ErrConnectionClosed reports that the peer closed the connection in an
// orderly way. No response should be attempted.
var ErrConnectionClosed = errors.New("ingest: connection closed")

// ProtocolError is a request that violates HTTP/1.1 framing or one of the
// request-smuggling rules. Err is one of the protocol sentinels above.
type ProtocolError struct {
	Err    error  // sentinel, matched with errors.Is
	Detail string // human-readable context, may be empty
	Token  string // offending transfer-coding for ErrUnknownTransferEncoding
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	switch {
	case e.Token != "":
		return fmt.Sprintf("ingest: %v: %q", e.Err, e.Token)
	case e.Detail != "":
		return fmt.Sprintf("ingest: %v: %s", e.Err, e.Detail)
	}
	return fmt.Sprintf("ingest: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError wraps a failure of the underlying reader, including
// cancellation of the caller's context.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("ingest: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err is a protocol violation, for which a
// connection that has not started a response may answer 400 before closing.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func protocolError(sentinel error, detail string) *ProtocolError {
	return &ProtocolError{Err: sentinel, Detail: detail}
}

// reason is the short label used for the rejection metric.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "malformed"
	case errors.Is(err, ErrDuplicateContentLength):
		return "duplicate_content_length"
	case errors.Is(err, ErrInvalidContentLength):
		return "invalid_content_length"
	case errors.Is(err, ErrMisorderedTransferEncoding):
		return "misordered_transfer_encoding"
	case errors.Is(err, ErrUnknownTransferEncoding):
		return "unknown_transfer_encoding"
	case errors.Is(err, ErrChunkedNotFinal):
		return "chunked_not_final"
	case errors.Is(err, ErrConflictingLengthAndChunkedEncoding):
		return "conflicting_length_and_chunked"
	case errors.Is(err, ErrTooManyPipelined):
		return "too_many_pipelined"
	case errors.Is(err, ErrBodyTooLarge):
		return "body_too_large"
	case errors.Is(err, ErrHeaderTooLarge):
		return "header_too_large"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	}
	return "transport"
}
