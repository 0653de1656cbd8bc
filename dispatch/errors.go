package dispatch

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind tags a dispatch result
type Kind int

const (
	KindOK Kind = iota

	// KindEnvelope: the request never named a handler
	KindEnvelope

	KindUnknownHandler

	KindDomain

	// KindFault: anything a handler did not raise on purpose, panics included
	KindFault
)

func (k Kind) String() string {

	switch k {

	case KindOK:
		return "ok"

	case KindEnvelope:
		return "envelope_error"

	case KindUnknownHandler:
		return "unknown_handler"

	case KindDomain:
		return "domain_error"

	default:
		return "fault"
	}
}

// EnvelopeError reports a missing or malformed request payload
type EnvelopeError struct {
	Message string
}

func (e *EnvelopeError) Error() string {
	return e.Message
}

// DomainError is raised deliberately by a handler. The message is safe to
// show to clients; the captured stack is only shown outside production.
type DomainError struct {
	Status int

	Message string

	stack error
}

// Domainf builds a DomainError. A zero status means 500.
func Domainf(status int, format string, args ...any) *DomainError {

	if status == 0 {
		status = http.StatusInternalServerError
	}

	msg := fmt.Sprintf(format, args...)

	return &DomainError{Status: status, Message: msg, stack: errors.New(msg)}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Format prints the stack trace for %+v
func (e *DomainError) Format(s fmt.State, verb rune) {

	if verb == 'v' && s.Flag('+') && e.stack != nil {

		fmt.Fprintf(s, "%d %+v", e.Status, e.stack)

		return
	}

	fmt.Fprint(s, e.Message)
}
