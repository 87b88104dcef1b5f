package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures. Every error surfaced by the
// workflow carries exactly one kind.
type ErrorKind string

const (
	// Retrieval
	KindIssueNotFound    ErrorKind = "IssueNotFound"
	KindTrackerAuthError ErrorKind = "TrackerAuthError"
	// KindTrackerUnreachable covers transport failures and unexpected
	// statuses from the tracker.
	KindTrackerUnreachable ErrorKind = "TrackerUnreachable"

	// Generation
	KindProviderUnreachable   ErrorKind = "ProviderUnreachable"
	KindProviderAuthError     ErrorKind = "ProviderAuthError"
	KindProviderResponseError ErrorKind = "ProviderResponseError"
	KindTimeout               ErrorKind = "Timeout"

	// Export
	KindSessionNotFound ErrorKind = "SessionNotFound"
	KindSessionNotReady ErrorKind = "SessionNotReady"

	// Request-time validation
	KindConfigInvalid ErrorKind = "ConfigInvalid"

	// KindInternal covers collaborator failures outside the taxonomy
	// (database, keyring, renderer).
	KindInternal ErrorKind = "Internal"
)

// Error is a classified workflow error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind, keeping it as the cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrorInfo is the serializable form of an error attached to a session.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// InfoOf converts err into its serializable form.
func InfoOf(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return &ErrorInfo{Kind: de.Kind, Message: de.Message}
	}
	return &ErrorInfo{Kind: KindInternal, Message: err.Error()}
}
