package blob_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
)

func storageConfig(root, public string) configs.StorageConfig {
	return configs.StorageConfig{
		Type:      configs.StorageLocal,
		APIPrefix: "/api/file",
		Local: configs.LocalStorageConfig{
			Root:         root,
			PublicDir:    public,
			PublicPrefix: "/uploads",
		},
	}
}

func newLocal(t *testing.T) (*blob.Local, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "data")
	store, err := blob.NewLocal(storageConfig(root, ""))
	require.NoError(t, err)

	return store, root
}

func TestLocalSaveReadDelete(t *testing.T) {
	ctx := context.Background()
	store, root := newLocal(t)

	payload := []byte("hello dropvault")
	loc, err := store.Save(ctx, bytes.NewReader(payload), int64(len(payload)), "Report.PDF")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "/api/file/"), loc)
	assert.True(t, strings.HasSuffix(loc, ".pdf"), loc)

	rc, err := store.Read(ctx, loc)
	require.NoError(t, err)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	info, err := store.Stat(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Equal(t, loc, info.Locator)

	// 不留下临时文件
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx, loc))
	// 幂等
	require.NoError(t, store.Delete(ctx, loc))

	_, err = store.Read(ctx, loc)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestLocalPublicLocator(t *testing.T) {
	public := filepath.Join(t.TempDir(), "public")
	store, err := blob.NewLocal(storageConfig(filepath.Join(public, "uploads"), public))
	require.NoError(t, err)

	loc, err := store.Save(context.Background(), strings.NewReader("x"), 1, "a.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "/uploads/"), loc)
}

func TestLocalNamesNeverCollide(t *testing.T) {
	ctx := context.Background()
	store, _ := newLocal(t)

	seen := map[string]bool{}

	for range 50 {
		loc, err := store.Save(ctx, strings.NewReader("same"), 4, "same.txt")
		require.NoError(t, err)
		assert.False(t, seen[loc], "duplicate locator %s", loc)
		seen[loc] = true
	}
}

func TestLocalShortWriteFails(t *testing.T) {
	store, root := newLocal(t)

	_, err := store.Save(context.Background(), strings.NewReader("abc"), 10, "a.bin")
	require.ErrorIs(t, err, blob.ErrStorageWrite)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalCanceledContext(t *testing.T) {
	store, _ := newLocal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, strings.NewReader("abc"), 3, "a.bin")
	assert.ErrorIs(t, err, blob.ErrStorageWrite)
}

func TestLocalRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, root := newLocal(t)

	secret := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("s"), 0o600))

	for _, loc := range []string{"", "/api/file/", "/api/file/..", "..", ".", `/api/file/..\secret.txt`} {
		_, err := store.Read(ctx, loc)
		assert.ErrorIs(t, err, blob.ErrNotFound, "locator %q", loc)
	}

	// 只取最后一段，不会逃出根目录
	_, err := store.Read(ctx, "/api/file/../secret.txt")
	assert.ErrorIs(t, err, blob.ErrNotFound)

	_, err = os.Stat(secret)
	require.NoError(t, store.Delete(ctx, "/api/file/../secret.txt"))
	_, err2 := os.Stat(secret)
	assert.NoError(t, err)
	assert.NoError(t, err2)
}

func TestLocalList(t *testing.T) {
	ctx := context.Background()
	store, root := newLocal(t)

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := store.Save(ctx, strings.NewReader(name), int64(len(name)), name)
		require.NoError(t, err)
	}

	// 临时文件与子目录被忽略
	require.NoError(t, os.WriteFile(filepath.Join(root, ".upload-123"), []byte("tmp"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	var infos []blob.ObjectInfo

	for info, err := range store.List(ctx) {
		require.NoError(t, err)

		infos = append(infos, info)
	}

	assert.Len(t, infos, 2)

	for _, info := range infos {
		assert.True(t, strings.HasPrefix(info.Locator, "/api/file/"))
	}
}

func TestLocalPing(t *testing.T) {
	store, root := newLocal(t)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(root))
	assert.Error(t, store.Ping(context.Background()))
}

func TestOpenUnknownType(t *testing.T) {
	_, err := blob.Open(context.Background(), configs.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
