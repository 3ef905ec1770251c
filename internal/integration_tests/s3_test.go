package integrationtests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"medix-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scanBucket = "test-scan-bucket"

func setupS3Provider(t *testing.T, ctx context.Context) *storage.S3Provider {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	provider, err := storage.NewS3Provider(storage.S3ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)

	require.NoError(t, provider.CreateBucket(ctx, scanBucket))

	return provider
}

func TestS3Provider_PutAndGetObject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	key := "scans/patient-1/scan-1.jpg"
	content := []byte("fake scan bytes")

	require.NoError(t, provider.PutObject(ctx, scanBucket, key, bytes.NewReader(content)))

	data, err := provider.GetObject(ctx, scanBucket, key)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = provider.GetObject(ctx, scanBucket, "scans/patient-1/missing.jpg")
	assert.Error(t, err)
}

func TestS3Provider_CreateBucketTwice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	// Recreating an owned bucket is not an error.
	require.NoError(t, provider.CreateBucket(ctx, scanBucket))
}

func TestS3Provider_ListObjects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	files := map[string]string{
		"scans/patient-1/scan-1.jpg": "first scan",
		"scans/patient-1/scan-2.jpg": "second scan",
		"scans/patient-2/scan-1.jpg": "other patient",
	}
	for key, content := range files {
		require.NoError(t, provider.PutObject(ctx, scanBucket, key, bytes.NewReader([]byte(content))))
	}

	objects, err := provider.ListObjects(ctx, scanBucket, "scans/patient-1/")
	require.NoError(t, err)
	require.Len(t, objects, 2)

	names := []string{objects[0].Name, objects[1].Name}
	assert.ElementsMatch(t, []string{"scans/patient-1/scan-1.jpg", "scans/patient-1/scan-2.jpg"}, names)
	for _, obj := range objects {
		assert.Equal(t, int64(len(files[obj.Name])), obj.Size)
	}

	all, err := provider.ListObjects(ctx, scanBucket, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestS3Provider_DeleteObjects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	files := []string{"scans/patient-1/scan-1.jpg", "scans/patient-1/scan-2.jpg", "scans/patient-2/scan-1.jpg"}
	for _, key := range files {
		require.NoError(t, provider.PutObject(ctx, scanBucket, key, bytes.NewReader([]byte("content: "+key))))
	}

	require.NoError(t, provider.DeleteObjects(ctx, scanBucket, "scans/patient-1/"))

	remaining, err := provider.ListObjects(ctx, scanBucket, "scans/")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "scans/patient-2/scan-1.jpg", remaining[0].Name)
}

func TestS3Provider_DownloadObject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	key := "checkpoints/skin_model.onnx"
	content := []byte("pretend checkpoint")
	require.NoError(t, provider.PutObject(ctx, scanBucket, key, bytes.NewReader(content)))

	// The destination directory does not exist yet, DownloadObject creates it.
	filename := filepath.Join(t.TempDir(), "models", "skin_model.onnx")
	require.NoError(t, provider.DownloadObject(ctx, scanBucket, key, filename))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}
