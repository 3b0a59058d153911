package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager coordinates snapshot runs and retention management
type Manager struct {
	runner           SnapshotRunner
	retentionManager RetentionManager
	logger           *slog.Logger
}

// NewManager creates a new backup manager
func NewManager(runner SnapshotRunner, retentionManager RetentionManager, logger *slog.Logger) *Manager {
	return &Manager{
		runner:           runner,
		retentionManager: retentionManager,
		logger:           logger,
	}
}

// RunWithRetention takes a snapshot stamped with at and then applies the
// retention policy. Retention only runs when the snapshot had no failures, so
// an incomplete snapshot never pushes a complete one out of the window.
func (m *Manager) RunWithRetention(ctx context.Context, at time.Time, retentionCount int) (*Report, error) {
	report, err := m.runner.Run(ctx, at)
	if err != nil {
		return report, fmt.Errorf("failed to take snapshot: %w", err)
	}

	if retentionCount <= 0 {
		return report, nil
	}

	if report.Err() != nil {
		m.logger.Warn("Skipping retention after incomplete snapshot", "snapshot_root", report.SnapshotRoot)
		return report, nil
	}

	if _, err := m.retentionManager.Prune(ctx, retentionCount); err != nil {
		m.logger.Warn("Failed to apply retention policy", "error", err)
		// Don't fail the snapshot if retention fails
	}

	return report, nil
}
