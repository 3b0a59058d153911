package backup

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SnapshotsRoot holds every snapshot namespace
	SnapshotsRoot = "backup/"

	// snapshotPrefix starts every snapshot root name
	snapshotPrefix = SnapshotsRoot + "users_"

	// TimestampLayout is yyyy-MM-dd_HH-mm-ss. It is fixed width and zero padded,
	// so snapshot roots sort chronologically as plain strings.
	TimestampLayout = "2006-01-02_15-04-05"
)

// SnapshotRoot returns the namespace a snapshot taken at t is written to:
// backup/users_{yyyy-MM-dd_HH-mm-ss}/. The time is rendered in UTC.
func SnapshotRoot(t time.Time) string {
	return snapshotPrefix + t.UTC().Format(TimestampLayout) + "/"
}

// ParseSnapshotRoot extracts the timestamp of a snapshot root
func ParseSnapshotRoot(root string) (time.Time, error) {
	if !strings.HasPrefix(root, snapshotPrefix) || !strings.HasSuffix(root, "/") {
		return time.Time{}, fmt.Errorf("not a snapshot root: %q", root)
	}

	timestamp := strings.TrimSuffix(strings.TrimPrefix(root, snapshotPrefix), "/")
	if !isValidTimestamp(timestamp) {
		return time.Time{}, fmt.Errorf("invalid snapshot timestamp: %q", timestamp)
	}

	t, err := time.Parse(TimestampLayout, timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot timestamp %q: %w", timestamp, err)
	}
	return t, nil
}

// IsSnapshotRoot reports whether root follows the snapshot naming scheme
func IsSnapshotRoot(root string) bool {
	_, err := ParseSnapshotRoot(root)
	return err == nil
}

// isValidTimestamp checks if a timestamp string matches the expected format: YYYY-MM-DD_HH-MM-SS
func isValidTimestamp(timestamp string) bool {
	if len(timestamp) != len(TimestampLayout) {
		return false
	}

	for i, r := range timestamp {
		switch TimestampLayout[i] {
		case '-', '_':
			if byte(r) != TimestampLayout[i] {
				return false
			}
		default:
			if r < '0' || r > '9' {
				return false
			}
		}
	}

	return true
}
