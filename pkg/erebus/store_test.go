package erebus

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "reports/a.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "reports/a.json", strings.NewReader(`{"id":"a"}`)))
	require.NoError(t, store.Put(ctx, "reports/b.json", strings.NewReader(`{"id":"b"}`)))
	require.NoError(t, store.Put(ctx, "other/c.json", strings.NewReader(`{}`)))

	ok, err = store.Exists(ctx, "reports/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Get(ctx, "reports/a.json")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, `{"id":"a"}`, string(data))

	keys, err := store.List(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.json", "reports/b.json"}, keys)

	// overwrite replaces the content
	require.NoError(t, store.Put(ctx, "reports/a.json", strings.NewReader(`{"id":"a2"}`)))
	rc, err = store.Get(ctx, "reports/a.json")
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `{"id":"a2"}`, string(data))

	require.NoError(t, store.Delete(ctx, "reports/a.json"))
	require.NoError(t, store.Delete(ctx, "reports/a.json"))

	_, err = store.Get(ctx, "reports/a.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "reports/x.json", strings.NewReader("x")))

	entries, err := os.ReadDir(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.json", entries[0].Name())
}

func TestNewS3Store(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)

	store, err := NewS3Store(context.Background(), S3Config{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		Bucket:    "reports",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "reports", store.bucket)

	var _ Store = store
}
