package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStorePutGet(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, KindUser, "user-1", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/avatars/users/user-1.png", url)

	rc, contentType, err := store.Get(ctx, KindUser, "user-1")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", contentType)
}

func TestFilesystemStoreReplaceChangesExtension(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, KindOrganization, "org-1", strings.NewReader("png"), "image/png")
	require.NoError(t, err)

	url, err := store.Put(ctx, KindOrganization, "org-1", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/avatars/orgs/org-1.jpg", url)

	// Only the latest upload survives.
	rc, contentType, err := store.Get(ctx, KindOrganization, "org-1")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "image/jpeg", contentType)
}

func TestFilesystemStoreUnsupportedType(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), KindUser, "user-1", strings.NewReader("<svg/>"), "image/svg+xml")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFilesystemStoreDelete(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, KindProject, "proj-1", strings.NewReader("png"), "image/png")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, KindProject, "proj-1"))
	_, _, err = store.Get(ctx, KindProject, "proj-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(ctx, KindProject, "proj-1"))
}

func TestFilesystemStoreGetMissing(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), KindUser, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemStoreHealthCheck(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(Config{Type: "filesystem", FilesystemRoot: t.TempDir()})
	require.NoError(t, err)
	_, ok := store.(*FilesystemStore)
	assert.True(t, ok)
}
