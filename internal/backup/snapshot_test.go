package backup

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRootFormat(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "backup/users_2024-06-01_09-05-03/", SnapshotRoot(at))
}

func TestSnapshotRootUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 6, 1, 1, 0, 0, 0, loc)
	assert.Equal(t, "backup/users_2024-05-31_23-00-00/", SnapshotRoot(at))
}

func TestParseSnapshotRoot(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "valid root",
			root: "backup/users_2024-01-01_00-00-00/",
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "missing trailing slash", root: "backup/users_2024-01-01_00-00-00", wantErr: true},
		{name: "wrong namespace", root: "backup/other_2024-01-01_00-00-00/", wantErr: true},
		{name: "compact timestamp", root: "backup/users_20240101-000000/", wantErr: true},
		{name: "non numeric", root: "backup/users_2024-01-0x_00-00-00/", wantErr: true},
		{name: "impossible date", root: "backup/users_2024-13-01_00-00-00/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnapshotRoot(tt.root)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsSnapshotRoot(tt.root))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
			assert.True(t, IsSnapshotRoot(tt.root))
		})
	}
}

func TestSnapshotRootsSortChronologically(t *testing.T) {
	base := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	offsets := []time.Duration{
		0, time.Second, 9 * time.Second, 10 * time.Second, time.Hour,
		26 * time.Hour, 40 * 24 * time.Hour, 400 * 24 * time.Hour,
	}

	var roots []string
	for i := len(offsets) - 1; i >= 0; i-- {
		roots = append(roots, SnapshotRoot(base.Add(offsets[i])))
	}
	sort.Strings(roots)

	for i := 1; i < len(roots); i++ {
		prev, err := ParseSnapshotRoot(roots[i-1])
		require.NoError(t, err)
		next, err := ParseSnapshotRoot(roots[i])
		require.NoError(t, err)
		assert.True(t, prev.Before(next), "%s should sort before %s", roots[i-1], roots[i])
	}
}

func TestIsValidTimestamp(t *testing.T) {
	assert.True(t, isValidTimestamp("2024-01-01_12-00-00"))
	assert.False(t, isValidTimestamp("2024-01-01-12-00-00"))
	assert.False(t, isValidTimestamp("2024-1-01_12-00-00"))
	assert.False(t, isValidTimestamp(""))
}
