// Package history keeps a short log of backup and restore runs.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/backup"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/restore"
)

const (
	KindBackup  = "backup"
	KindRestore = "restore"
)

// Entry is one recorded run
type Entry struct {
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
	Subject   string    `json:"subject"`
	Snapshot  string    `json:"snapshot,omitempty"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
}

// Recorder stores and returns run entries
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, kind string, n int) ([]Entry, error)
}

// RedisRecorder keeps the latest entries per kind in a capped Redis list
type RedisRecorder struct {
	client *redis.Client
	prefix string
	limit  int64
}

// NewRedisRecorder creates a recorder keeping at most limit entries per kind
func NewRedisRecorder(client *redis.Client, prefix string, limit int64) *RedisRecorder {
	if limit <= 0 {
		limit = 100
	}
	return &RedisRecorder{
		client: client,
		prefix: prefix,
		limit:  limit,
	}
}

func (r *RedisRecorder) key(kind string) string {
	return fmt.Sprintf("%s:%s", r.prefix, kind)
}

// Record implements Recorder.Record
func (r *RedisRecorder) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	key := r.key(entry.Kind)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, r.limit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record %s run: %w", entry.Kind, err)
	}
	return nil
}

// Recent implements Recorder.Recent, newest first
func (r *RedisRecorder) Recent(ctx context.Context, kind string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	raw, err := r.client.LRange(ctx, r.key(kind), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s history: %w", kind, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

func (NopRecorder) Recent(context.Context, string, int) ([]Entry, error) { return nil, nil }

// BackupEntry summarizes a snapshot run
func BackupEntry(at time.Time, report *backup.Report, runErr error) Entry {
	e := Entry{Kind: KindBackup, At: at, Subject: "users/"}
	if report != nil {
		e.Snapshot = report.SnapshotRoot
		if report.Copies != nil {
			e.Succeeded = len(report.Copies.Succeeded)
			e.Failed = len(report.Copies.Failed)
		}
	}
	e.Error = errorText(runErr, report.Err())
	return e
}

// RestoreEntry summarizes a restore
func RestoreEntry(at time.Time, userID string, report *restore.Report, runErr error) Entry {
	e := Entry{Kind: KindRestore, At: at, Subject: userID}
	if report != nil {
		e.Snapshot = report.SnapshotRoot
		if report.Copied != nil {
			e.Succeeded = len(report.Copied.Succeeded)
			e.Failed = len(report.Copied.Failed)
		}
		if report.Deleted != nil {
			e.Failed += len(report.Deleted.Failed)
		}
	}
	e.Error = errorText(runErr, report.Err())
	return e
}

func errorText(errs ...error) string {
	for _, err := range errs {
		if err != nil {
			return err.Error()
		}
	}
	return ""
}

var (
	_ Recorder = (*RedisRecorder)(nil)
	_ Recorder = NopRecorder{}
)
