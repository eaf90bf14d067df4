package core

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("session expired")
)

// user-facing messages of remote failures
const (
	MsgServerUnreachable = "Impossible de se connecter au serveur"
	MsgSessionExpired    = "Session expirée"
	MsgGenericError      = "Une erreur est survenue"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// RemoteError is a failed call to the stages API, already translated to a user-facing message.
// Status is 0 when the server could not be reached at all.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func NewRemoteError(status int, message string, err error) error {
	return &RemoteError{Status: status, Message: message, Err: err}
}

func (err RemoteError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("remote status %d: %s: %v", err.Status, err.Message, err.Err)
	}
	return fmt.Sprintf("remote status %d: %s", err.Status, err.Message)
}

// Is lets errors.Is match remote failures against ErrNotFound and ErrUnauthorized.
func (err RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return err.Status == http.StatusNotFound
	case ErrUnauthorized:
		return err.Status == http.StatusUnauthorized
	}
	return false
}

func (err RemoteError) Unwrap() error { return err.Err }

// AsRemoteError returns the RemoteError at the root of err, if any.
func AsRemoteError(err error) (*RemoteError, bool) {
	rErr, ok := errors.Cause(err).(*RemoteError)
	return rErr, ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
