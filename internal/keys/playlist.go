// Package keys derives storage keys for persisted playlists. The same key is
// used as a file name, an object key and a primary key so that every storage
// backend lists the same names.
package keys

import (
	"strings"
)

const extension = ".json"

var unsafeChars = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "",
)

// Sanitize turns a playlist name into a safe file name stem: spaces become
// underscores, reserved characters are dropped and leading or trailing dots
// and spaces are trimmed.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.Replace(name)
	return strings.Trim(name, ". ")
}

// Playlist returns the canonical storage key for a playlist name.
func Playlist(name string) string {
	return Sanitize(name) + extension
}

// Name recovers a display name from a storage key.
func Name(key string) string {
	return strings.ReplaceAll(strings.TrimSuffix(key, extension), "_", " ")
}

// IsPlaylist reports whether key looks like a persisted playlist.
func IsPlaylist(key string) bool {
	return strings.HasSuffix(key, extension)
}
