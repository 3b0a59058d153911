package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/bulk"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
)

// StoreRetentionManager handles retention management for snapshots
type StoreRetentionManager struct {
	logger      *slog.Logger
	store       objectstore.ObjectStore
	concurrency int
	metrics     *Metrics
}

// NewStoreRetentionManager creates a new retention manager. metrics may be nil.
func NewStoreRetentionManager(store objectstore.ObjectStore, concurrency int, metrics *Metrics, logger *slog.Logger) *StoreRetentionManager {
	return &StoreRetentionManager{
		logger:      logger,
		store:       store,
		concurrency: concurrency,
		metrics:     metrics,
	}
}

// ListSnapshots returns every snapshot root, newest first. Prefixes under
// backup/ that do not follow the snapshot naming scheme are skipped.
func (rm *StoreRetentionManager) ListSnapshots(ctx context.Context) ([]string, error) {
	return ListSnapshots(ctx, rm.store, rm.logger)
}

// Prune applies the retention policy: all objects of every snapshot older than
// the newest keep snapshots are deleted
func (rm *StoreRetentionManager) Prune(ctx context.Context, keep int) (*bulk.Result, error) {
	if keep <= 0 {
		rm.logger.Info("Retention disabled (retention count <= 0)")
		return bulk.NewResult("prune"), nil
	}

	rm.logger.Info("Managing snapshot retention", "retention_count", keep)

	roots, err := rm.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	expired := rm.SnapshotsToDelete(roots, keep)
	if len(expired) == 0 {
		rm.logger.Info("No snapshots to delete after retention analysis")
		return bulk.NewResult("prune"), nil
	}

	var keys []string
	for _, root := range expired {
		res, err := rm.store.List(ctx, root, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshot %s: %w", root, err)
		}
		for _, obj := range res.Objects {
			keys = append(keys, obj.Key)
		}
	}

	rm.logger.Info("Deleting expired snapshots", "snapshots", expired, "objects", len(keys))

	result, err := bulk.Run(ctx, "prune", keys, rm.concurrency, rm.store.Delete)
	rm.metrics.observePruned(len(result.Succeeded))
	if err != nil {
		return result, fmt.Errorf("prune interrupted: %w", err)
	}

	if len(result.Failed) > 0 {
		rm.logger.Warn("Some snapshot objects could not be deleted", "failed", len(result.Failed))
	} else {
		rm.logger.Info("Successfully cleaned up old snapshots", "deleted_count", len(result.Succeeded))
	}
	return result, nil
}

// SnapshotsToDelete returns the roots beyond the newest keep, newest first
func (rm *StoreRetentionManager) SnapshotsToDelete(roots []string, keep int) []string {
	if keep <= 0 || len(roots) <= keep {
		return nil
	}

	sorted := append([]string(nil), roots...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	return sorted[keep:]
}

// ListSnapshots lists the snapshot roots in store, newest first
func ListSnapshots(ctx context.Context, store objectstore.ObjectStore, logger *slog.Logger) ([]string, error) {
	res, err := store.List(ctx, SnapshotsRoot, "/")
	if err != nil {
		return nil, err
	}

	roots := make([]string, 0, len(res.CommonPrefixes))
	for _, cp := range res.CommonPrefixes {
		if !IsSnapshotRoot(cp) {
			logger.Warn("Ignoring prefix that is not a snapshot root", "prefix", cp)
			continue
		}
		roots = append(roots, cp)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(roots)))
	return roots, nil
}

var _ RetentionManager = (*StoreRetentionManager)(nil)
