package backup

import (
	"context"
	"time"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/bulk"
)

// SnapshotRunner takes a snapshot of every live object
type SnapshotRunner interface {
	// Run copies the live namespace into the snapshot root derived from at
	Run(ctx context.Context, at time.Time) (*Report, error)
}

// RetentionManager interface for handling snapshot retention
type RetentionManager interface {
	// Prune deletes every snapshot but the newest keep
	Prune(ctx context.Context, keep int) (*bulk.Result, error)

	// SnapshotsToDelete returns the roots that fall outside the retention window
	SnapshotsToDelete(roots []string, keep int) []string
}
