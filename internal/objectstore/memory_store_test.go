package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(keys ...string) *MemoryStore {
	store := NewMemoryStore("test-bucket")
	for _, k := range keys {
		store.AddFile(k, []byte("content of "+k), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	}
	return store
}

func objectKeys(res *ListResult) []string {
	keys := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func TestMemoryStoreListDrainsAllPages(t *testing.T) {
	store := seedStore(
		"users/1/a.txt", "users/1/b.txt", "users/1/c.txt",
		"users/1/d.txt", "users/1/e.txt", "users/2/f.txt",
	)
	store.SetPageSize(2)

	res, err := store.List(context.Background(), "users/1/", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"users/1/a.txt", "users/1/b.txt", "users/1/c.txt", "users/1/d.txt", "users/1/e.txt",
	}, objectKeys(res))
	assert.Empty(t, res.CommonPrefixes)
	assert.Equal(t, 3, store.Calls("list_page"))
}

func TestMemoryStoreListWithDelimiter(t *testing.T) {
	store := seedStore(
		"users/1/",
		"users/1/top.txt",
		"users/1/docs/",
		"users/1/docs/a.txt",
		"users/1/docs/deep/b.txt",
		"users/1/pics/c.png",
	)
	store.SetPageSize(1)

	res, err := store.List(context.Background(), "users/1/", "/")
	require.NoError(t, err)

	assert.Equal(t, []string{"users/1/", "users/1/top.txt"}, objectKeys(res))
	assert.Equal(t, []string{"users/1/docs/", "users/1/pics/"}, res.CommonPrefixes)
}

func TestMemoryStoreGetMissingKey(t *testing.T) {
	store := NewMemoryStore("test-bucket")

	_, err := store.Get(context.Background(), "users/1/missing.txt")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestMemoryStorePutGetCopyDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("test-bucket")

	require.NoError(t, store.Put(ctx, "users/1/a.txt", strings.NewReader("hello"), "text/plain"))
	require.NoError(t, store.Copy(ctx, "users/1/a.txt", "backup/users_x/1/a.txt"))

	rc, err := store.Get(ctx, "backup/users_x/1/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, "users/1/a.txt"))
	// deleting an absent key succeeds
	require.NoError(t, store.Delete(ctx, "users/1/a.txt"))
	assert.Empty(t, store.Keys("users/"))
}

func TestMemoryStoreInjectedFailures(t *testing.T) {
	ctx := context.Background()
	store := seedStore("users/1/a.txt", "users/1/b.txt")
	store.FailOn("copy", "users/1/b", ErrStoreUnavailable)

	require.NoError(t, store.Copy(ctx, "users/1/a.txt", "x/a.txt"))

	err := store.Copy(ctx, "users/1/b.txt", "x/b.txt")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "copy", storeErr.Op)
	assert.Equal(t, "users/1/b.txt", storeErr.Key)

	store.ClearFailures()
	require.NoError(t, store.Copy(ctx, "users/1/b.txt", "x/b.txt"))
}

func TestMemoryStoreListStopsWhenCanceled(t *testing.T) {
	store := seedStore("users/1/a.txt", "users/1/b.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx, "users/", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Calls("list_page"))
}

func TestStoreErrorMessage(t *testing.T) {
	err := &StoreError{Op: "get", Key: "users/1/a", Err: ErrNotFound}
	assert.Equal(t, "get users/1/a: object not found", err.Error())

	err = &StoreError{Op: "list", Err: errors.New("boom")}
	assert.Equal(t, "list: boom", err.Error())
}
