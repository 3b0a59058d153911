package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

const (
	integrationTestBucket    = "drive-gateway-test"
	minioImage               = "minio/minio:RELEASE.2024-01-16T16-07-38Z"
	minioUsername            = "minioadmin"
	minioPassword            = "minioadmin"
	skipIntegrationTestMsg   = "Skipping integration test in short mode"
	terminateContainerErrMsg = "Failed to terminate MinIO container: %v"
)

// setupMinIOStore starts a MinIO testcontainer and returns an S3Store bound to a fresh bucket
func setupMinIOStore(ctx context.Context, t *testing.T, pageSize int32) *S3Store {
	minioContainer, err := minio.Run(ctx,
		minioImage,
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(minioContainer); err != nil {
			t.Logf(terminateContainerErrMsg, err)
		}
	})

	endpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	store, err := NewS3Store(ctx, S3Config{
		Bucket:          integrationTestBucket,
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
		PageSize:        pageSize,
	}, logger)
	require.NoError(t, err)

	_, err = store.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(integrationTestBucket),
	})
	require.NoError(t, err)

	return store
}

func TestS3StoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip(skipIntegrationTestMsg)
	}

	ctx := context.Background()
	store := setupMinIOStore(ctx, t, 2)

	t.Run("ListDrainsPages", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			key := fmt.Sprintf("users/42/file-%d.txt", i)
			require.NoError(t, store.Put(ctx, key, strings.NewReader("data"), "text/plain"))
		}
		require.NoError(t, store.Put(ctx, "users/42/docs/", strings.NewReader(""), ""))
		require.NoError(t, store.Put(ctx, "users/42/docs/inner.txt", strings.NewReader("x"), "text/plain"))

		flat, err := store.List(ctx, "users/42/", "")
		require.NoError(t, err)
		assert.Len(t, flat.Objects, 7)
		assert.Empty(t, flat.CommonPrefixes)

		shallow, err := store.List(ctx, "users/42/", "/")
		require.NoError(t, err)
		assert.Len(t, shallow.Objects, 5)
		assert.Equal(t, []string{"users/42/docs/"}, shallow.CommonPrefixes)
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "users/42/nope.txt")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("CopyKeepsContent", func(t *testing.T) {
		src := "users/42/with space.txt"
		dst := "backup/users_2024-01-01_00-00-00/42/with space.txt"
		require.NoError(t, store.Put(ctx, src, strings.NewReader("copied"), "text/plain"))
		require.NoError(t, store.Copy(ctx, src, dst))

		rc, err := store.Get(ctx, dst)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "copied", string(data))
	})

	t.Run("DeleteAbsentSucceeds", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "users/42/never-existed.txt"))
	})
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 bucket is required")
}

func TestCopySourceEscapesSegments(t *testing.T) {
	assert.Equal(t, "bucket/users/1/a%20b.txt", copySource("bucket", "users/1/a b.txt"))
	assert.Equal(t, "bucket/users/1/dir/", copySource("bucket", "users/1/dir/"))
}
