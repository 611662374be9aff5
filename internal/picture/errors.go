package picture

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a picture request did not produce a locator.
type ErrorKind int

// Error kinds, as returned by Kind.
const (
	// KindNone means there was no error.
	KindNone ErrorKind = iota
	// KindTransport means no response was received.
	KindTransport
	// KindProtocol means the response is not the expected envelope.
	KindProtocol
	// KindApplication means the service reported an error.
	KindApplication
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// TransportError means the request could not be sent or no response arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means a response arrived but it is not a usable envelope.
type ProtocolError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProtocolError) Error() string {
	s := fmt.Sprintf("protocol: http %d: %s", e.StatusCode, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ApplicationError is an explicit status "error" reply.
type ApplicationError struct {
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("service: http %d: %s", e.StatusCode, e.Message)
}

// Kind returns the kind of err. Errors not produced by this package,
// such as context cancellation, count as transport failures.
func Kind(err error) ErrorKind {
	var (
		te *TransportError
		pe *ProtocolError
		ae *ApplicationError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &ae):
		return KindApplication
	case errors.As(err, &pe):
		return KindProtocol
	case errors.As(err, &te):
		return KindTransport
	}
	return KindTransport
}
