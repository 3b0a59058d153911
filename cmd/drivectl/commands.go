package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/backup"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/drive"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/hierarchy"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/history"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/restore"
)

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Usage:    "User id whose namespace to operate on",
		Required: true,
	}
}

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Snapshot every user's live objects and apply retention",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "keep",
				Usage: "Snapshots to keep after this run (0 disables retention, default from BACKUP_RETENTION)",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "Write run metrics to this file in the node-exporter textfile format",
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			keep := e.cfg.Backup.RetentionCount
			if c.IsSet("keep") {
				keep = c.Int("keep")
			}

			reg := prometheus.NewRegistry()
			err := runBackup(c.Context, e, c.App.Writer, time.Now(), keep, reg)

			if path := c.String("metrics-textfile"); path != "" {
				if werr := prometheus.WriteToTextfile(path, reg); werr != nil {
					e.logger.Warn("Failed to write metrics textfile", "path", path, "error", werr)
				}
			}
			return err
		}),
	}
}

func runBackup(ctx context.Context, e *env, w io.Writer, at time.Time, keep int, reg prometheus.Registerer) error {
	metrics := backup.NewMetrics(reg)
	concurrency := e.cfg.Backup.Concurrency

	manager := backup.NewManager(
		backup.NewSnapshotter(e.store, concurrency, metrics, e.logger),
		backup.NewStoreRetentionManager(e.store, concurrency, metrics, e.logger),
		e.logger,
	)

	report, err := manager.RunWithRetention(ctx, at, keep)
	e.record(ctx, history.BackupEntry(at, report, err))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "snapshot %s: %d scanned, %d copied, %d failed\n",
		report.SnapshotRoot, report.Scanned, len(report.Copies.Succeeded), len(report.Copies.Failed))
	return report.Err()
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Replace a user's live objects with the latest snapshot",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "replace or copy-then-prune (default from RESTORE_STRATEGY)",
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			strategy := e.cfg.Restore.Strategy
			if c.IsSet("strategy") {
				strategy = c.String("strategy")
			}
			return runRestore(c.Context, e, c.App.Writer, c.String("user"), strategy)
		}),
	}
}

func runRestore(ctx context.Context, e *env, w io.Writer, userID, strategy string) error {
	s, err := restore.ParseStrategy(strategy)
	if err != nil {
		return err
	}

	orchestrator := restore.NewOrchestrator(e.store, s, e.cfg.Restore.Concurrency, e.logger)
	report, err := orchestrator.Restore(ctx, userID)
	e.record(ctx, history.RestoreEntry(time.Now(), userID, report, err))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "restored %s from %s (%s): %d deleted, %d copied\n",
		userID, report.SnapshotRoot, report.Strategy,
		len(report.Deleted.Succeeded), len(report.Copied.Succeeded))
	return report.Err()
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List a user's files and folders",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "folder", Usage: "Folder path relative to the user's root"},
			&cli.BoolFlag{Name: "flat", Usage: "List every object below the user's root"},
			&cli.BoolFlag{Name: "json", Usage: "Print entries as JSON"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			svc := drive.NewService(e.store, e.logger)
			userID := c.String("user")

			var (
				entries []hierarchy.Entry
				err     error
			)
			switch {
			case c.Bool("flat"):
				entries, err = svc.ListFlat(c.Context, userID)
			case c.String("folder") != "":
				entries, err = svc.ListFolder(c.Context, userID, c.String("folder"))
			default:
				entries, err = svc.ListRoot(c.Context, userID, true)
			}
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, entries)
			}
			return printEntries(c.App.Writer, entries)
		}),
	}
}

func mkdirCommand() *cli.Command {
	return &cli.Command{
		Name:  "mkdir",
		Usage: "Create a folder in a user's namespace",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "path", Usage: "Folder path relative to the user's root"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			svc := drive.NewService(e.store, e.logger)
			userID := c.String("user")

			if c.String("path") == "" {
				_, err := svc.CreateUserRoot(c.Context, userID)
				return err
			}
			if err := hierarchy.ValidateUserID(userID); err != nil {
				return err
			}
			_, err := svc.CreateFolder(c.Context, hierarchy.UserKey(userID, c.String("path")))
			return err
		}),
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete all but the newest snapshots",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "keep", Usage: "Snapshots to keep (default from BACKUP_RETENTION)"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			keep := e.cfg.Backup.RetentionCount
			if c.IsSet("keep") {
				keep = c.Int("keep")
			}

			rm := backup.NewStoreRetentionManager(e.store, e.cfg.Backup.Concurrency, nil, e.logger)
			res, err := rm.Prune(c.Context, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "pruned %d objects, %d failed\n", len(res.Succeeded), len(res.Failed))
			return res.Err()
		}),
	}
}

func snapshotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "List snapshot roots, newest first",
		Action: withEnv(func(c *cli.Context, e *env) error {
			roots, err := backup.ListSnapshots(c.Context, e.store, e.logger)
			if err != nil {
				return err
			}
			for _, root := range roots {
				fmt.Fprintln(c.App.Writer, root)
			}
			return nil
		}),
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent backup or restore runs (needs REDIS_ADDR)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Value: history.KindBackup, Usage: "backup or restore"},
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "Number of runs to show"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			entries, err := e.recorder.Recent(c.Context, c.String("kind"), c.Int("limit"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, entries)
		}),
	}
}

func printEntries(w io.Writer, entries []hierarchy.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		modified := "-"
		if entry.LastModified != nil {
			modified = entry.LastModified.UTC().Format(time.RFC3339)
		}
		kind := "file"
		if entry.IsFolder {
			kind = "dir"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", kind, entry.Size, modified, entry.Name)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
