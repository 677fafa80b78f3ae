package assistant

import (
	"errors"
	"fmt"
)

// ErrInvalidSession is returned for operations on an unknown session id.
// It is the only assistant error that aborts before any transcript write.
var ErrInvalidSession = errors.New("invalid session id")

// ErrDisabled is returned when the assistant has no configured provider.
var ErrDisabled = errors.New("AI assistant is not configured")

// MalformedQueryError reports extracted text that is not a plausible SPARQL
// query. The transcript still records the turn; the bound query is untouched.
type MalformedQueryError struct {
	Reason string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query: %s", e.Reason)
}
