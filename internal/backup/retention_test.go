package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	snapJan = "backup/users_2024-01-01_00-00-00/"
	snapFeb = "backup/users_2024-02-01_00-00-00/"
	snapMar = "backup/users_2024-03-01_00-00-00/"
	snapApr = "backup/users_2024-04-01_00-00-00/"
)

func TestSnapshotsToDelete(t *testing.T) {
	rm := NewStoreRetentionManager(nil, 1, nil, discardLogger())
	roots := []string{snapFeb, snapApr, snapJan, snapMar}

	tests := []struct {
		name string
		keep int
		want []string
	}{
		{name: "keep two", keep: 2, want: []string{snapFeb, snapJan}},
		{name: "keep one", keep: 1, want: []string{snapMar, snapFeb, snapJan}},
		{name: "keep all", keep: 4, want: nil},
		{name: "keep more than exist", keep: 10, want: nil},
		{name: "disabled", keep: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rm.SnapshotsToDelete(roots, tt.keep))
		})
	}

	// input is left untouched
	assert.Equal(t, []string{snapFeb, snapApr, snapJan, snapMar}, roots)
}

func TestListSnapshotsNewestFirstAndSkipsForeignPrefixes(t *testing.T) {
	store := seededStore(
		snapJan+"1/a.txt",
		snapMar+"1/a.txt",
		snapFeb+"2/b.txt",
		"backup/manual-copy/1/a.txt",
		"backup/users_latest/1/a.txt",
	)

	rm := NewStoreRetentionManager(store, 1, nil, discardLogger())
	roots, err := rm.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{snapMar, snapFeb, snapJan}, roots)
}

func TestPruneDeletesExpiredSnapshots(t *testing.T) {
	store := seededStore(
		"users/1/a.txt",
		snapJan+"1/a.txt",
		snapJan+"1/docs/",
		snapFeb+"1/a.txt",
		snapMar+"1/a.txt",
		snapApr+"1/a.txt",
	)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	rm := NewStoreRetentionManager(store, 2, metrics, discardLogger())

	result, err := rm.Prune(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.Len(t, result.Succeeded, 3)

	assert.Equal(t, []string{snapMar + "1/a.txt", snapApr + "1/a.txt"}, store.Keys("backup/"))
	assert.Equal(t, []string{"users/1/a.txt"}, store.Keys("users/"))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.PrunedObjects))
}

func TestPruneDisabled(t *testing.T) {
	store := seededStore(snapJan + "1/a.txt")
	rm := NewStoreRetentionManager(store, 1, nil, discardLogger())

	result, err := rm.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, result.Total())
	assert.Equal(t, 0, store.Calls("list"))
}

func TestPruneReportsDeleteFailures(t *testing.T) {
	store := seededStore(snapJan+"1/a.txt", snapJan+"1/b.txt", snapFeb+"1/a.txt")
	store.FailOn("delete", snapJan+"1/b.txt", errors.New("locked"))
	rm := NewStoreRetentionManager(store, 1, nil, discardLogger())

	result, err := rm.Prune(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, snapJan+"1/b.txt", result.Failed[0].Key)
	assert.Equal(t, []string{snapJan + "1/b.txt", snapFeb + "1/a.txt"}, store.Keys("backup/"))
}

func TestPruneFailsWhenListingFails(t *testing.T) {
	store := seededStore(snapJan + "1/a.txt")
	store.FailOn("list", "backup/", errors.New("boom"))
	rm := NewStoreRetentionManager(store, 1, nil, discardLogger())

	_, err := rm.Prune(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list snapshots")
}
