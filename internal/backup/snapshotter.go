package backup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/bulk"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/hierarchy"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// Report describes one snapshot run
type Report struct {
	SnapshotRoot string       `json:"snapshotRoot"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	Scanned      int          `json:"scanned"`
	Copies       *bulk.Result `json:"copies"`
}

// Err returns a *bulk.PartialFailure when any object failed to copy
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return r.Copies.Err()
}

// Snapshotter copies every live object into a new timestamped namespace
type Snapshotter struct {
	store       objectstore.ObjectStore
	logger      *slog.Logger
	concurrency int
	metrics     *Metrics
}

// NewSnapshotter creates a new snapshotter. metrics may be nil.
func NewSnapshotter(store objectstore.ObjectStore, concurrency int, metrics *Metrics, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		store:       store,
		logger:      logger,
		concurrency: concurrency,
		metrics:     metrics,
	}
}

// Run takes one snapshot. The destination root is derived from at, which the
// caller computes per run. Objects that fail to copy are recorded in the
// report and the run carries on; only a failed enumeration aborts. Source
// objects are never modified.
func (s *Snapshotter) Run(ctx context.Context, at time.Time) (*Report, error) {
	root := SnapshotRoot(at)
	report := &Report{
		SnapshotRoot: root,
		StartedAt:    time.Now(),
	}

	s.logger.Info("Starting snapshot", "bucket", s.store.Bucket(), "snapshot_root", root)

	res, err := s.store.List(ctx, hierarchy.UsersRoot, "")
	if err != nil {
		s.metrics.observeRun(runFailed)
		s.logger.Error("Failed to enumerate live objects", "error", err)
		return nil, fmt.Errorf("failed to list live objects: %w", err)
	}

	keys := make([]string, 0, len(res.Objects))
	for _, obj := range res.Objects {
		keys = append(keys, obj.Key)
	}
	report.Scanned = len(keys)

	copies, err := bulk.Run(ctx, "snapshot copy", keys, s.concurrency, func(ctx context.Context, key string) error {
		dst := root + strings.TrimPrefix(key, hierarchy.UsersRoot)
		if err := s.store.Copy(ctx, key, dst); err != nil {
			s.logger.Warn("Failed to copy object into snapshot", "key", key, "destination", dst, "error", err)
			return err
		}
		return nil
	})
	report.Copies = copies
	report.FinishedAt = time.Now()

	s.metrics.observeCopies(len(copies.Succeeded), len(copies.Failed))

	if err != nil {
		s.metrics.observeRun(runFailed)
		return report, fmt.Errorf("snapshot %s interrupted: %w", root, err)
	}

	if len(copies.Failed) > 0 {
		s.metrics.observeRun(runPartial)
		s.logger.Warn("Snapshot completed with failures",
			"snapshot_root", root,
			"scanned", report.Scanned,
			"copied", len(copies.Succeeded),
			"failed", len(copies.Failed),
		)
		return report, nil
	}

	s.metrics.observeRun(runSucceeded)
	s.metrics.observeSuccess(report.FinishedAt)
	s.logger.Info("Snapshot completed",
		"snapshot_root", root,
		"copied", len(copies.Succeeded),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

var _ SnapshotRunner = (*Snapshotter)(nil)
