package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Delimiter separates path segments inside object keys
	Delimiter = "/"

	// UsersRoot is the prefix of every live object
	UsersRoot = "users/"
)

// ErrInvalidUserID is returned for user ids that would escape their namespace
var ErrInvalidUserID = errors.New("invalid user id")

// ValidateUserID checks that id is usable as a single key segment
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if strings.Contains(id, Delimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidUserID, id, Delimiter)
	}
	return nil
}

// UserRoot returns the live namespace prefix for a user: users/{id}/
func UserRoot(userID string) string {
	return UsersRoot + userID + Delimiter
}

// UserKey joins a user-relative path onto the user's live namespace.
// Embedded separators in name are kept as path structure.
func UserKey(userID, name string) string {
	return UserRoot(userID) + name
}

// NormalizeFolder makes sure a non-empty folder path ends with the delimiter.
// The empty path stays empty and denotes the user root.
func NormalizeFolder(path string) string {
	if path == "" || strings.HasSuffix(path, Delimiter) {
		return path
	}
	return path + Delimiter
}

// IsMarker reports whether key is a folder marker object
func IsMarker(key string) bool {
	return strings.HasSuffix(key, Delimiter)
}
