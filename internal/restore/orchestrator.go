package restore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/backup"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/bulk"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/hierarchy"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// ErrNoBackupAvailable is returned when no snapshot exists to restore from
var ErrNoBackupAvailable = errors.New("no backup available")

// Strategy selects how live objects are replaced by the snapshot
type Strategy string

const (
	// StrategyReplace deletes every live object before copying the snapshot
	// back. A failure between the two phases leaves the user with missing data.
	StrategyReplace Strategy = "replace"

	// StrategyCopyThenPrune copies the snapshot over the live namespace first
	// and only then deletes live objects the snapshot does not contain.
	StrategyCopyThenPrune Strategy = "copy-then-prune"
)

// ParseStrategy converts a configuration value into a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyReplace:
		return StrategyReplace, nil
	case StrategyCopyThenPrune:
		return StrategyCopyThenPrune, nil
	default:
		return "", fmt.Errorf("unknown restore strategy %q", s)
	}
}

// Report describes one restore
type Report struct {
	UserID       string       `json:"userId"`
	SnapshotRoot string       `json:"snapshotRoot"`
	Strategy     Strategy     `json:"strategy"`
	Deleted      *bulk.Result `json:"deleted"`
	Copied       *bulk.Result `json:"copied"`
}

// Err returns the per-object failures of both phases, or nil
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Deleted.Err(), r.Copied.Err())
}

// Orchestrator replaces a user's live objects with the latest snapshot
type Orchestrator struct {
	store       objectstore.ObjectStore
	logger      *slog.Logger
	concurrency int
	strategy    Strategy
}

// NewOrchestrator creates a new restore orchestrator
func NewOrchestrator(store objectstore.ObjectStore, strategy Strategy, concurrency int, logger *slog.Logger) *Orchestrator {
	if strategy == "" {
		strategy = StrategyReplace
	}
	return &Orchestrator{
		store:       store,
		logger:      logger,
		concurrency: concurrency,
		strategy:    strategy,
	}
}

// LatestSnapshot returns the newest snapshot root
func (o *Orchestrator) LatestSnapshot(ctx context.Context) (string, error) {
	roots, err := backup.ListSnapshots(ctx, o.store, o.logger)
	if err != nil {
		return "", fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(roots) == 0 {
		return "", ErrNoBackupAvailable
	}
	return roots[0], nil
}

// Restore replaces the live namespace of userID with its contents in the
// latest snapshot. Listing failures abort and are returned; per-object
// failures are collected in the report. Folder markers are not restored.
func (o *Orchestrator) Restore(ctx context.Context, userID string) (*Report, error) {
	if err := hierarchy.ValidateUserID(userID); err != nil {
		return nil, err
	}

	latest, err := o.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, ErrNoBackupAvailable) {
			o.logger.Info("No snapshot to restore from", "user_id", userID)
		}
		return nil, err
	}

	liveRoot := hierarchy.UserRoot(userID)
	snapshotRoot := latest + userID + hierarchy.Delimiter

	o.logger.Info("Starting restore",
		"user_id", userID,
		"snapshot_root", latest,
		"strategy", o.strategy,
	)

	// Read the snapshot before touching live data so an unreadable snapshot
	// leaves the user as they were.
	snapshot, err := o.store.List(ctx, snapshotRoot, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot %s: %w", snapshotRoot, err)
	}

	copies := make(map[string]string)
	var sources []string
	for _, obj := range snapshot.Objects {
		if hierarchy.IsMarker(obj.Key) {
			continue
		}
		copies[obj.Key] = liveRoot + strings.TrimPrefix(obj.Key, snapshotRoot)
		sources = append(sources, obj.Key)
	}

	live, err := o.store.List(ctx, liveRoot, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list live objects %s: %w", liveRoot, err)
	}
	liveKeys := make([]string, 0, len(live.Objects))
	for _, obj := range live.Objects {
		liveKeys = append(liveKeys, obj.Key)
	}

	report := &Report{
		UserID:       userID,
		SnapshotRoot: latest,
		Strategy:     o.strategy,
	}

	copyFn := func(ctx context.Context, src string) error {
		if err := o.store.Copy(ctx, src, copies[src]); err != nil {
			o.logger.Warn("Failed to restore object", "key", src, "destination", copies[src], "error", err)
			return err
		}
		return nil
	}
	deleteFn := func(ctx context.Context, key string) error {
		if err := o.store.Delete(ctx, key); err != nil {
			o.logger.Warn("Failed to delete live object", "key", key, "error", err)
			return err
		}
		return nil
	}

	switch o.strategy {
	case StrategyCopyThenPrune:
		restored := make(map[string]bool, len(copies))
		for _, dst := range copies {
			restored[dst] = true
		}
		var stale []string
		for _, key := range liveKeys {
			if !restored[key] {
				stale = append(stale, key)
			}
		}

		report.Copied, err = bulk.Run(ctx, "restore copy", sources, o.concurrency, copyFn)
		if err != nil {
			report.Deleted = bulk.NewResult("restore delete")
			return report, fmt.Errorf("restore of user %s interrupted: %w", userID, err)
		}
		report.Deleted, err = bulk.Run(ctx, "restore delete", stale, o.concurrency, deleteFn)
		if err != nil {
			return report, fmt.Errorf("restore of user %s interrupted: %w", userID, err)
		}

	default:
		report.Deleted, err = bulk.Run(ctx, "restore delete", liveKeys, o.concurrency, deleteFn)
		if err != nil {
			report.Copied = bulk.NewResult("restore copy")
			return report, fmt.Errorf("restore of user %s interrupted: %w", userID, err)
		}
		report.Copied, err = bulk.Run(ctx, "restore copy", sources, o.concurrency, copyFn)
		if err != nil {
			return report, fmt.Errorf("restore of user %s interrupted: %w", userID, err)
		}
	}

	if err := report.Err(); err != nil {
		o.logger.Warn("Restore completed with failures", "user_id", userID, "error", err)
	} else {
		o.logger.Info("Restore completed",
			"user_id", userID,
			"snapshot_root", latest,
			"deleted", len(report.Deleted.Succeeded),
			"copied", len(report.Copied.Succeeded),
		)
	}

	return report, nil
}
