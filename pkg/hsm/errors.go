package hsm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFrameTooLarge is returned when header and message do not fit a 2-octet length prefix.
	ErrFrameTooLarge = errors.New("hsm: frame too large")
	// ErrInvalidHeader is returned for headers that are not exactly 4 printable ASCII octets.
	ErrInvalidHeader = errors.New("hsm: invalid header")
	// ErrFrameLength is reported by strict unframing when the prefix disagrees with the frame size.
	ErrFrameLength = errors.New("hsm: frame length mismatch")
	// ErrFrameHeader is reported by strict unframing when the header differs from the session one.
	ErrFrameHeader = errors.New("hsm: frame header mismatch")
	// ErrInvalidCommandCode is returned for command codes that are not 2 uppercase alphanumerics.
	ErrInvalidCommandCode = errors.New("hsm: invalid command code")

	// ErrHsmTimeout matches every *TimeoutError.
	ErrHsmTimeout = errors.New("hsm: timeout")
	// ErrResponseTooShort matches every *ResponseTooShortError.
	ErrResponseTooShort = errors.New("hsm: response too short")
	// ErrSessionClosed is returned by calls on a closed session and fails the request in flight on Close.
	ErrSessionClosed = errors.New("hsm: session closed")
	// ErrHsm matches every *HsmError.
	ErrHsm = errors.New("hsm: logical error")
)

// ConnectionError reports a failure to establish or use the TCP connection.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("hsm: connection error: %v", e.Err)
	}
	return fmt.Sprintf("hsm: connection error with %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports that no response arrived within the session timeout, or
// before the deadline of the caller's context (Err is then context.DeadlineExceeded).
// Timed out requests are never retried.
type TimeoutError struct {
	Command CommandCode
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("hsm: no response after %s", e.Timeout)
	}
	return fmt.Sprintf("hsm: no response to %s after %s", e.Command, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrHsmTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// ProtocolError reports a message the session could not accept (empty, malformed frame).
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hsm: protocol error: %s: %v", e.Reason, e.Err)
	}
	return "hsm: protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ResponseTooShortError reports a response that cannot hold the 10-octet prologue.
type ResponseTooShortError struct {
	Length int
}

func (e *ResponseTooShortError) Error() string {
	return fmt.Sprintf("hsm: response too short (%d bytes, need at least %d)", e.Length, prologueLength)
}

func (e *ResponseTooShortError) Is(target error) bool { return target == ErrResponseTooShort }

// MalformedResponseError reports a response whose content does not match the expected layout.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "hsm: malformed response: " + e.Reason
}

// HsmError is the logical error reported by the HSM through a non "00" error code.
// It is returned as data by Response.Err, never raised by the transport.
type HsmError struct {
	Command CommandCode
	Code    ErrorCode
}

func (e *HsmError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("hsm: error %s", e.Code.Verbose())
	}
	return fmt.Sprintf("hsm: %s failed with %s", e.Command, e.Code.Verbose())
}

func (e *HsmError) Is(target error) bool { return target == ErrHsm }
