package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVersion is returned when a document was produced by a
	// newer format than this build understands.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	errNullGroup = errors.New("group is null")
)

// MalformedError reports a snapshot whose structure does not have the
// expected shape. Group and Field are empty when the problem is above them.
type MalformedError struct {
	Group string
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	switch {
	case e.Group != "" && e.Field != "":
		return fmt.Sprintf("malformed snapshot: group %q: field %q: %v", e.Group, e.Field, e.Err)
	case e.Group != "":
		return fmt.Sprintf("malformed snapshot: group %q: %v", e.Group, e.Err)
	case e.Field != "":
		return fmt.Sprintf("malformed snapshot: field %q: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("malformed snapshot: %v", e.Err)
	}
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// withGroup attaches a group name to err.
func withGroup(group string, err error) error {
	var me *MalformedError
	if errors.As(err, &me) {
		me.Group = group
		return me
	}
	return &MalformedError{Group: group, Err: err}
}
