package explorer

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindTimeout     Kind = "timeout"
	KindRemote      Kind = "remote_error"
	KindDecode      Kind = "decode_error"
)

// Error is returned by every Client call that fails. Status is the HTTP
// status of the reply for KindRemote and zero otherwise.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRemote && e.Message != "":
		return fmt.Sprintf("explorer %s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Kind == KindRemote:
		return fmt.Sprintf("explorer %s: %s (status %d)", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("explorer %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("explorer %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}
