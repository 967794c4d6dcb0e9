package gateway

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// ErrAuthenticationFailed means the server closed the session because the token was rejected.
// The supervisor still retries: a presence feed never gives up on its own.
var ErrAuthenticationFailed = errors.New("gateway authentication failed")

// TransientError tags a failure the supervising loop recovers from by reconnecting
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is recovered by reconnection
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// classifyReadError maps a transport read failure to the error taxonomy
func classifyReadError(err error) error {
	if websocket.IsCloseError(err, closeAuthenticationFailed) {
		return transient("read", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err))
	}
	return transient("read", err)
}
