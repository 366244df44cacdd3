package transport

import (
	"errors"
	"fmt"
)

// Kind classifies transport failures so callers can react to connection
// problems, bad credentials, timeouts and remote command failures without
// string matching.
type Kind string

const (
	KindConnection     Kind = "connection"
	KindAuthentication Kind = "authentication"
	KindTimeout        Kind = "timeout"
	KindRemoteCommand  Kind = "remote_command"
)

// Error is a kinded transport error wrapping the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or an empty Kind if err is not a
// transport error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
