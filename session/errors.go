package session

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/client"
)

var (
	ErrClosed     = errors.New("session manager closed")
	ErrSuperseded = errors.New("superseded by a newer request")
	ErrNoSession  = errors.New("not signed in")
)

// Error is a failed session operation, with a message fit for end users.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Cause() error  { return e.Err }

var codeMessages = map[string]string{
	"invalid_credentials": "Invalid email or password.",
	"email_not_confirmed": "Please confirm your email address, then sign in again.",
	"account_deactivated": "This account has been deactivated.",
	"rate_limited":        "Too many attempts. Please wait a moment and try again.",
	"session_revoked":     "You have been signed out. Please sign in again.",
	"refresh_expired":     "Your session has expired. Please sign in again.",
}

func userMessage(err error) string {
	if apiErr, ok := client.AsError(err); ok {
		if msg, ok := codeMessages[apiErr.Code]; ok {
			return msg
		}
		if len(apiErr.Fields) > 0 {
			msgs := make([]string, 0, len(apiErr.Fields))
			for _, msg := range apiErr.Fields {
				msgs = append(msgs, msg)
			}
			sort.Strings(msgs)
			return strings.Join(msgs, " ")
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server took too long to answer. Please try again."
	}
	return "Could not reach the server. Please check your connection."
}

func userError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Message: userMessage(err), Err: err}
}
