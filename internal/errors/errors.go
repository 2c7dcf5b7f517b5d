package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the click analytics application

// ErrGenerationExhausted is returned when no unique short code was found within the attempt bound.
// It is fatal for the shortening request and must not be retried further up.
var ErrGenerationExhausted = errors.New("failed to generate a unique short code")

// ErrAliasTaken is returned when a custom alias is already used as an alias or as a short code
var ErrAliasTaken = errors.New("custom alias already in use")

// ErrInvalidAlias is returned when a custom alias contains characters outside [a-z0-9_-] or has a bad length
var ErrInvalidAlias = errors.New("invalid custom alias")

// ErrInvalidURL is returned when the provided URL is not an absolute http(s) URL
var ErrInvalidURL = errors.New("invalid URL format")

// ErrDuplicateURL is returned when the owner already shortened the same long URL
var ErrDuplicateURL = errors.New("URL already shortened by this owner")

// ErrLinkNotFound is returned when a short code or link ID doesn't exist, is inactive, or isn't owned by the caller
var ErrLinkNotFound = errors.New("link not found")

// ErrLinkExpired is returned when a link exists but is past its expiry date
var ErrLinkExpired = errors.New("link has expired")

// ErrNoLocation is returned by the geo chain when no provider produced a valid location
var ErrNoLocation = errors.New("no geolocation provider succeeded")

// ErrNoAddress is returned when neither the request nor external discovery yields a client address
var ErrNoAddress = errors.New("client address could not be determined")

// ErrProviderUnavailable is returned by a guarded provider that is throttled or has an open circuit
var ErrProviderUnavailable = errors.New("provider unavailable")

// RecordingFailure is returned when a click could not be persisted.
// It never reaches the redirect path: the recorder logs it and moves on.
type RecordingFailure struct {
	LinkID uint
	Stage  string
	Err    error
}

func (e *RecordingFailure) Error() string {
	return fmt.Sprintf("failed to record click for link %d (%s): %v", e.LinkID, e.Stage, e.Err)
}

func (e *RecordingFailure) Unwrap() error { return e.Err }

// ResolutionDegraded describes an enrichment lookup that fell back to sentinel values.
type ResolutionDegraded struct {
	Stage string
	Err   error
}

func (e *ResolutionDegraded) Error() string {
	return fmt.Sprintf("%s resolution degraded: %v", e.Stage, e.Err)
}

func (e *ResolutionDegraded) Unwrap() error { return e.Err }

// ErrConfigLoad is returned when configuration loading fails
type ErrConfigLoad struct {
	Path   string
	Reason string
}

func (e ErrConfigLoad) Error() string {
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Reason)
}
