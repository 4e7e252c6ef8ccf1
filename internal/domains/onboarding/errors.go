package onboarding

import (
	"errors"
	"fmt"
)

// Input errors
var (
	ErrUnknownFlow        = errors.New("unknown onboarding flow")
	ErrUnknownField       = errors.New("unknown field")
	ErrFieldNotInFlow     = errors.New("field does not belong to this flow")
	ErrInvalidValue       = errors.New("value does not match the field type")
	ErrPictureUnsupported = errors.New("this flow does not collect a profile picture")
)

// State errors
var (
	ErrTransitionInProgress = errors.New("a step transition is already in progress")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("onboarding already submitted")
	ErrNotReady             = errors.New("onboarding is not ready to submit")
	ErrCheckPending         = errors.New("availability check still running")
	ErrWizardClosed         = errors.New("onboarding session is closed")
)

// Lookup errors
var (
	ErrSessionNotFound = errors.New("onboarding session not found")
	ErrDraftNotFound   = errors.New("draft not found")
	ErrAuthRequired    = errors.New("this flow requires a signed-in account")
)

// ErrMalformedResponse marks a 2xx registration reply that could not be decoded
var ErrMalformedResponse = errors.New("malformed registration response")

// User facing messages
const (
	MsgCorrectErrors        = "Please correct the errors before continuing"
	MsgCheckFailed          = "Could not verify availability, please try again"
	MsgUsernameTaken        = "This username is already taken"
	MsgEmailTaken           = "An account with this email already exists"
	MsgGenericRetry         = "Something went wrong, please try again"
	MsgSessionExpired       = "Your session has expired, please sign in again"
	MsgCheckingAvailability = "Checking availability, please wait"
)

// ========================================
// SUBMISSION / GATE ERROR TAXONOMY
// ========================================

// ValidationError is a field scoped, user recoverable failure
type ValidationError struct {
	Fields  map[FieldKey]string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return MsgCorrectErrors
}

// AvailabilityConflictError reports a taken username or email
type AvailabilityConflictError struct {
	Field   FieldKey
	Step    int
	Message string
}

func (e *AvailabilityConflictError) Error() string {
	return e.Message
}

// AuthExpiredError ends the session; the client must sign in again
type AuthExpiredError struct {
	RedirectURL string
}

func (e *AuthExpiredError) Error() string {
	return MsgSessionExpired
}

// TransportError wraps network failures where no response arrived
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registration request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError covers 5xx replies and undecodable payloads
type ServerError struct {
	Status int
	Err    error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("registration server error (status %d): %v", e.Status, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// APIError is a non-2xx reply decoded from the registration API
type APIError struct {
	Status  int
	Message string
	// Field and Kind are set when the API returns a structured error
	Field string
	Kind  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registration api %d: %s", e.Status, e.Message)
}
