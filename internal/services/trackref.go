package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/crowdq/internal/shared"
)

// TrackIDLength is the fixed length of a Spotify base-62 identifier.
const TrackIDLength = 22

var (
	trackIDPattern  = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)
	trackURLPattern = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]{2}/)?track/([0-9A-Za-z]+)`)
	trackURIPattern = regexp.MustCompile(`^spotify:track:([0-9A-Za-z]+)$`)
	playlistURI     = regexp.MustCompile(`^spotify:playlist:([0-9A-Za-z]+)$`)
)

// ValidTrackID reports whether id has the shape of a track reference.
func ValidTrackID(id string) bool {
	return trackIDPattern.MatchString(id)
}

// NormalizeTrackRef accepts a bare ID, a spotify:track URI or an open.spotify.com link and
// returns the bare 22 character ID. Anything else fails with [shared.ErrInvalidTrackRef].
func NormalizeTrackRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	candidate := ref
	if m := trackURIPattern.FindStringSubmatch(ref); m != nil {
		candidate = m[1]
	} else if m := trackURLPattern.FindStringSubmatch(ref); m != nil {
		candidate = m[1]
	}
	if !ValidTrackID(candidate) {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidTrackRef, ref)
	}
	return candidate, nil
}

// TrackURI converts a bare track ID into its spotify:track URI.
func TrackURI(id string) string {
	return "spotify:track:" + id
}

// PlaylistURI converts a playlist ID into its spotify:playlist URI.
func PlaylistURI(id string) string {
	return "spotify:playlist:" + id
}

// PlaylistIDFromURI extracts the playlist ID from a context URI, or "" if it is not a playlist.
func PlaylistIDFromURI(uri string) string {
	if m := playlistURI.FindStringSubmatch(uri); m != nil {
		return m[1]
	}
	return ""
}
