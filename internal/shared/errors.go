package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Remote service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrTransient          = fmt.Errorf("transient remote failure")
	ErrNotFound           = fmt.Errorf("not found")
	ErrPlaylistNotFound   = fmt.Errorf("playlist %w", ErrNotFound)
	ErrTrackNotFound      = fmt.Errorf("track %w", ErrNotFound)
	ErrNoDevice           = fmt.Errorf("playback device %w", ErrNotFound)

	// Operation queue errors
	ErrTimeout        = fmt.Errorf("operation timed out")
	ErrQueueClosed    = fmt.Errorf("operation queue closed")
	ErrOperationPanic = fmt.Errorf("operation panicked")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidTrackRef = fmt.Errorf("%w: track reference", ErrInvalidInput)
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsRetryable reports whether err is a rate limit or transient remote failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// UserMessage maps err to the short string shown to listeners.
//
// Diagnostic detail stays in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTrackRef):
		return "That doesn't look like a valid track link or ID."
	case errors.Is(err, ErrTrackNotFound):
		return "No matching track found."
	case errors.Is(err, ErrNoDevice):
		return "No playback device available. Open the player on a device and try again."
	case errors.Is(err, ErrNotFound):
		return "Couldn't find that on the music service."
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrRefreshFailed):
		return "Could not reach the music service."
	case errors.Is(err, ErrTimeout):
		return "The music service took too long to respond. Try again."
	case IsRetryable(err):
		return "The music service is busy. Try again in a moment."
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidArgument):
		return "Invalid request."
	default:
		return "Something went wrong."
	}
}
