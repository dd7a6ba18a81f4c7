package topology

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIgnored signals a re-join of an already registered switch.
	ErrDuplicateIgnored = errors.New("duplicate ignored")
	// ErrMalformedEvent signals an event or frame missing required fields.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrPartialInstallation signals that some rules of a path were installed and others were not.
	ErrPartialInstallation = errors.New("partial installation")
)

// Reason says why a lookup or installation came back empty.
type Reason string

const (
	ReasonHostUnresolved  Reason = "host-unresolved"
	ReasonHostUnreachable Reason = "host-unreachable"
	ReasonNoPath          Reason = "no-path"
	ReasonPortUnresolved  Reason = "port-unresolved"
	ReasonSwitchAbsent    Reason = "switch-absent"
)

// NotFoundError is a recoverable absence of a host, switch or path.
type NotFoundError struct {
	Reason Reason
	Detail string
}

func (e *NotFoundError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("not found: %s", e.Reason)
	}
	return fmt.Sprintf("not found: %s: %s", e.Reason, e.Detail)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(r Reason, format string, args ...interface{}) error {
	return &NotFoundError{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// Malformed wraps ErrMalformedEvent with a description of what was wrong.
func Malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedEvent, format, args...)
}

// ReasonOf returns the NotFound reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Reason, true
	}
	return "", false
}
