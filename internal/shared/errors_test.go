package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	t.Run("NotFound family", func(t *testing.T) {
		for _, err := range []error{ErrPlaylistNotFound, ErrTrackNotFound, ErrNoDevice} {
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected %v to wrap ErrNotFound", err)
			}
		}
	})

	t.Run("InvalidTrackRef wraps InvalidInput", func(t *testing.T) {
		if !errors.Is(ErrInvalidTrackRef, ErrInvalidInput) {
			t.Error("expected ErrInvalidTrackRef to wrap ErrInvalidInput")
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tc := []struct {
			err  error
			want bool
		}{
			{fmt.Errorf("%w: status 429", ErrRateLimited), true},
			{fmt.Errorf("%w: status 503", ErrTransient), true},
			{ErrTokenExpired, false},
			{ErrTrackNotFound, false},
			{nil, false},
		}
		for _, tt := range tc {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		}
	})
}

func TestUserMessage(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"auth failure", fmt.Errorf("%w: second 401", ErrAuthFailed), "Could not reach the music service."},
		{"validation", fmt.Errorf("%w: abc", ErrInvalidTrackRef), "That doesn't look like a valid track link or ID."},
		{"no results", fmt.Errorf("%w: no results for q", ErrTrackNotFound), "No matching track found."},
		{"timeout", fmt.Errorf("%w: switch playback", ErrTimeout), "The music service took too long to respond. Try again."},
		{"unknown", errors.New("boom"), "Something went wrong."},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
