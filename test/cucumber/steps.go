package cucumber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/GreedyKomodoDragon/drive-gateway/internal/backup"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/drive"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/hierarchy"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/objectstore"
	"github.com/GreedyKomodoDragon/drive-gateway/internal/restore"
)

const testBucket = "drive-features"

// TestContext holds the state of one scenario
type TestContext struct {
	store    *objectstore.MemoryStore
	drive    *drive.Service
	logger   *slog.Logger
	strategy restore.Strategy

	lastRestore    *restore.Report
	lastRestoreErr error
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := objectstore.NewMemoryStore(testBucket)
	return &TestContext{
		store:    store,
		drive:    drive.NewService(store, logger),
		logger:   logger,
		strategy: restore.StrategyReplace,
	}
}

// InitializeTestSuite initializes the cucumber test suite
func InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(func() {
		fmt.Println("Starting drive feature tests")
	})

	ctx.AfterSuite(func() {
		fmt.Println("Finished drive feature tests")
	})
}

// InitializeScenario initializes each cucumber scenario
func InitializeScenario(ctx *godog.ScenarioContext) {
	testCtx := NewTestContext()

	// Setup steps
	ctx.Step(`^an empty drive$`, testCtx.anEmptyDrive)
	ctx.Step(`^the store returns at most (\d+) objects per page$`, testCtx.theStoreReturnsAtMostObjectsPerPage)
	ctx.Step(`^user "([^"]*)" has the files:$`, testCtx.userHasTheFiles)
	ctx.Step(`^user "([^"]*)" has (\d+) files in folder "([^"]*)"$`, testCtx.userHasFilesInFolder)
	ctx.Step(`^the restore strategy is "([^"]*)"$`, testCtx.theRestoreStrategyIs)

	// Action steps
	ctx.Step(`^user "([^"]*)" uploads "([^"]*)" with content "([^"]*)"$`, testCtx.userUploads)
	ctx.Step(`^user "([^"]*)" deletes "([^"]*)"$`, testCtx.userDeletes)
	ctx.Step(`^user "([^"]*)" creates folder "([^"]*)"$`, testCtx.userCreatesFolder)
	ctx.Step(`^a backup is taken at "([^"]*)"$`, testCtx.aBackupIsTakenAt)
	ctx.Step(`^user "([^"]*)" is restored$`, testCtx.userIsRestored)

	// Verification steps
	ctx.Step(`^listing the root of user "([^"]*)" shows:$`, testCtx.listingTheRootShows)
	ctx.Step(`^listing folder "([^"]*)" of user "([^"]*)" shows:$`, testCtx.listingFolderShows)
	ctx.Step(`^the flat listing of user "([^"]*)" has (\d+) entries$`, testCtx.theFlatListingHasEntries)
	ctx.Step(`^user "([^"]*)" has exactly the files:$`, testCtx.userHasExactlyTheFiles)
	ctx.Step(`^the restore fails because no backup is available$`, testCtx.theRestoreFailsWithoutBackup)
	ctx.Step(`^the restore used snapshot "([^"]*)"$`, testCtx.theRestoreUsedSnapshot)
	ctx.Step(`^snapshot "([^"]*)" exists$`, testCtx.snapshotExists)
	ctx.Step(`^snapshot "([^"]*)" holds "([^"]*)" with content "([^"]*)"$`, testCtx.snapshotHolds)
}

func (tc *TestContext) anEmptyDrive() error {
	if keys := tc.store.Keys(""); len(keys) != 0 {
		return fmt.Errorf("expected an empty store, found %d objects", len(keys))
	}
	return nil
}

func (tc *TestContext) theStoreReturnsAtMostObjectsPerPage(n int) error {
	tc.store.SetPageSize(n)
	return nil
}

func (tc *TestContext) userHasTheFiles(userID string, table *godog.Table) error {
	rows, err := tableRows(table)
	if err != nil {
		return err
	}
	for path, content := range rows {
		tc.store.AddFile(hierarchy.UserKey(userID, path), []byte(content), time.Now())
	}
	return nil
}

func (tc *TestContext) userHasFilesInFolder(userID string, n int, folder string) error {
	prefix := hierarchy.UserKey(userID, hierarchy.NormalizeFolder(folder))
	for i := range n {
		tc.store.AddFile(fmt.Sprintf("%sfile-%05d.txt", prefix, i), []byte("x"), time.Now())
	}
	return nil
}

func (tc *TestContext) theRestoreStrategyIs(name string) error {
	strategy, err := restore.ParseStrategy(name)
	if err != nil {
		return err
	}
	tc.strategy = strategy
	return nil
}

func (tc *TestContext) userUploads(userID, path, content string) error {
	_, err := tc.drive.Upload(context.Background(), hierarchy.UserKey(userID, path), strings.NewReader(content), "text/plain")
	return err
}

func (tc *TestContext) userDeletes(userID, path string) error {
	_, err := tc.drive.Delete(context.Background(), hierarchy.UserKey(userID, path))
	return err
}

func (tc *TestContext) userCreatesFolder(userID, path string) error {
	_, err := tc.drive.CreateFolder(context.Background(), hierarchy.UserKey(userID, path))
	return err
}

func (tc *TestContext) aBackupIsTakenAt(timestamp string) error {
	at, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return fmt.Errorf("invalid backup time %q: %w", timestamp, err)
	}

	report, err := backup.NewSnapshotter(tc.store, 4, nil, tc.logger).Run(context.Background(), at)
	if err != nil {
		return err
	}
	return report.Err()
}

func (tc *TestContext) userIsRestored(userID string) error {
	orchestrator := restore.NewOrchestrator(tc.store, tc.strategy, 4, tc.logger)
	tc.lastRestore, tc.lastRestoreErr = orchestrator.Restore(context.Background(), userID)
	if tc.lastRestoreErr != nil && !errors.Is(tc.lastRestoreErr, restore.ErrNoBackupAvailable) {
		return tc.lastRestoreErr
	}
	return nil
}

func (tc *TestContext) listingTheRootShows(userID string, table *godog.Table) error {
	entries, err := tc.drive.ListRoot(context.Background(), userID, true)
	if err != nil {
		return err
	}
	return compareEntries(entries, table)
}

func (tc *TestContext) listingFolderShows(folder, userID string, table *godog.Table) error {
	entries, err := tc.drive.ListFolder(context.Background(), userID, folder)
	if err != nil {
		return err
	}
	return compareEntries(entries, table)
}

func (tc *TestContext) theFlatListingHasEntries(userID string, n int) error {
	entries, err := tc.drive.ListFlat(context.Background(), userID)
	if err != nil {
		return err
	}
	if len(entries) != n {
		return fmt.Errorf("expected %d entries, got %d", n, len(entries))
	}
	return nil
}

func (tc *TestContext) userHasExactlyTheFiles(userID string, table *godog.Table) error {
	want, err := tableRows(table)
	if err != nil {
		return err
	}

	root := hierarchy.UserRoot(userID)
	got := make(map[string]string)
	for _, key := range tc.store.Keys(root) {
		data, _ := tc.store.Content(key)
		got[strings.TrimPrefix(key, root)] = string(data)
	}

	if len(got) != len(want) {
		return fmt.Errorf("expected files %v, got %v", sortedKeys(want), sortedKeys(got))
	}
	for path, content := range want {
		actual, ok := got[path]
		if !ok {
			return fmt.Errorf("missing file %s, have %v", path, sortedKeys(got))
		}
		if actual != content {
			return fmt.Errorf("file %s: expected content %q, got %q", path, content, actual)
		}
	}
	return nil
}

func (tc *TestContext) theRestoreFailsWithoutBackup() error {
	if !errors.Is(tc.lastRestoreErr, restore.ErrNoBackupAvailable) {
		return fmt.Errorf("expected ErrNoBackupAvailable, got %v", tc.lastRestoreErr)
	}
	return nil
}

func (tc *TestContext) theRestoreUsedSnapshot(root string) error {
	if tc.lastRestore == nil {
		return fmt.Errorf("no restore has completed: %v", tc.lastRestoreErr)
	}
	if tc.lastRestore.SnapshotRoot != root {
		return fmt.Errorf("expected snapshot %s, got %s", root, tc.lastRestore.SnapshotRoot)
	}
	return nil
}

func (tc *TestContext) snapshotExists(root string) error {
	roots, err := backup.ListSnapshots(context.Background(), tc.store, tc.logger)
	if err != nil {
		return err
	}
	for _, r := range roots {
		if r == root {
			return nil
		}
	}
	return fmt.Errorf("snapshot %s not found in %v", root, roots)
}

func (tc *TestContext) snapshotHolds(root, path, content string) error {
	data, ok := tc.store.Content(root + path)
	if !ok {
		return fmt.Errorf("snapshot object %s%s not found", root, path)
	}
	if string(data) != content {
		return fmt.Errorf("snapshot object %s%s: expected %q, got %q", root, path, content, string(data))
	}
	return nil
}

// tableRows reads a two column table with a header row into a map
func tableRows(table *godog.Table) (map[string]string, error) {
	rows := make(map[string]string)
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("row %d: expected 2 cells, got %d", i, len(row.Cells))
		}
		rows[row.Cells[0].Value] = row.Cells[1].Value
	}
	return rows, nil
}

func compareEntries(entries []hierarchy.Entry, table *godog.Table) error {
	want, err := tableRows(table)
	if err != nil {
		return err
	}

	got := make(map[string]string, len(entries))
	for _, entry := range entries {
		kind := "file"
		if entry.IsFolder {
			kind = "folder"
		}
		got[entry.Name] = kind
	}

	if len(got) != len(want) {
		return fmt.Errorf("expected entries %v, got %v", sortedKeys(want), sortedKeys(got))
	}
	for name, kind := range want {
		if got[name] != kind {
			return fmt.Errorf("entry %s: expected %s, got %q (entries %v)", name, kind, got[name], sortedKeys(got))
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
