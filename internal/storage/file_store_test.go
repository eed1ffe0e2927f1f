package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freewebtopdf/source-patcher/internal/document"
	"github.com/freewebtopdf/source-patcher/internal/domain"
)

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(Options{Atomic: true})
	_, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))

	require.Error(t, err)
	assert.True(t, domain.IsIOError(err))
}

func TestFileStore_LoadDirectory(t *testing.T) {
	store := NewFileStore(Options{})
	_, err := store.Load(context.Background(), t.TempDir())

	require.Error(t, err)
	assert.True(t, domain.IsIOError(err))
}

func TestFileStore_LoadTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	writeFile(t, path, "0123456789", 0o644)

	store := NewFileStore(Options{MaxFileSize: 5})
	_, err := store.Load(context.Background(), path)

	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domain.ErrTooLarge, appErr.Code)
}

func TestFileStore_LoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileStore(Options{}).Load(ctx, "whatever")
	assert.True(t, domain.IsTimeout(err))
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	for _, atomicWrite := range []bool{true, false} {
		t.Run(map[bool]string{true: "atomic", false: "direct"}[atomicWrite], func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "a.txt")
			writeFile(t, path, "one\r\ntwo\r\n", 0o600)

			store := NewFileStore(Options{Atomic: atomicWrite})
			doc, err := store.Load(context.Background(), path)
			require.NoError(t, err)

			edited := doc.WithText("one\nTWO\n")
			require.NoError(t, store.Save(context.Background(), edited, path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "one\r\nTWO\r\n", string(data))

			if runtime.GOOS != "windows" {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			}

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temp files may be left behind")

			assert.Equal(t, int64(1), store.GetStats()["writes"])
		})
	}
}

func TestFileStore_SaveNewDestinationTakesSourceMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sh")
	dst := filepath.Join(dir, "dst.sh")
	writeFile(t, src, "echo hi\n", 0o750)

	store := NewFileStore(Options{Atomic: true})
	doc, err := store.Load(context.Background(), src)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), doc, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", string(data))
}

func TestFileStore_SaveThroughSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	link := filepath.Join(dir, "link.txt")
	writeFile(t, target, "old\n", 0o644)
	require.NoError(t, os.Symlink(target, link))

	store := NewFileStore(Options{Atomic: true})
	require.NoError(t, store.Save(context.Background(), document.New("new\n"), link))

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link must survive")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestFileStore_SaveMissingDirectory(t *testing.T) {
	store := NewFileStore(Options{Atomic: true})
	err := store.Save(context.Background(), document.New("x"), filepath.Join(t.TempDir(), "nope", "out.txt"))

	require.Error(t, err)
	assert.True(t, domain.IsIOError(err))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.yaml")
	require.NoError(t, WriteFileAtomic(path, []byte("a: 1\n"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("a: 2\n"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(data))
}
