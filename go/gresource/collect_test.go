package gresource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, roots ...string) *Collection {
	t.Helper()
	collection, err := NewCollector().Collect(context.Background(), roots)
	require.NoError(t, err)
	return collection
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestCollect(t *testing.T) {
	t.Run("no roots", func(t *testing.T) {
		_, err := NewCollector().Collect(context.Background(), nil)
		require.ErrorIs(t, err, ErrNoRoots)
	})

	t.Run("missing root", func(t *testing.T) {
		dir := t.TempDir()
		_, err := NewCollector().Collect(context.Background(), []string{filepath.Join(dir, "missing")})
		require.ErrorIs(t, err, os.ErrNotExist)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("plain file roots keep their order and base is the parent of the first", func(t *testing.T) {
		dir := t.TempDir()
		a := writeText(t, filepath.Join(dir, "a.txt"))
		b := writeText(t, filepath.Join(dir, "nested", "b.txt"))
		c := writePNG(t, filepath.Join(dir, "c.png"))

		collection := collect(t, a, b, c)
		require.Equal(t, dir, collection.Base)
		require.Equal(t, []string{a, b, c}, collection.Files.Paths())
	})

	t.Run("relative roots are made absolute", func(t *testing.T) {
		dir := t.TempDir()
		writeText(t, filepath.Join(dir, "a.txt"))
		chdir(t, dir)

		collection := collect(t, "a.txt")
		require.Equal(t, dir, collection.Base)
		require.Equal(t, []string{filepath.Join(dir, "a.txt")}, collection.Files.Paths())
	})

	t.Run("deep tree yields every file once and no directories", func(t *testing.T) {
		dir := t.TempDir()
		root := filepath.Join(dir, "res")
		want := []string{
			writeText(t, filepath.Join(root, "top.txt")),
			writePNG(t, filepath.Join(root, "icons", "app.png")),
			writeText(t, filepath.Join(root, "icons", "scalable", "app.svg.txt")),
			writeText(t, filepath.Join(root, "ui", "window.ui")),
			writeText(t, filepath.Join(root, "ui", "dialogs", "deep", "about.ui")),
		}
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

		collection := collect(t, root)
		require.Equal(t, dir, collection.Base)
		require.ElementsMatch(t, want, collection.Files.Paths())
		for _, ref := range collection.Files {
			require.False(t, ref.Dir)
		}
	})

	t.Run("children are listed before later siblings", func(t *testing.T) {
		dir := t.TempDir()
		first := writeText(t, filepath.Join(dir, "one", "sub", "a.txt"))
		second := writeText(t, filepath.Join(dir, "two", "b.txt"))

		collection := collect(t, filepath.Join(dir, "one"), filepath.Join(dir, "two"))
		require.Equal(t, []string{first, second}, collection.Files.Paths())
	})

	t.Run("duplicate roots produce duplicate files", func(t *testing.T) {
		dir := t.TempDir()
		a := writeText(t, filepath.Join(dir, "tree", "a.txt"))

		collection := collect(t, filepath.Join(dir, "tree"), filepath.Join(dir, "tree"))
		require.Equal(t, []string{a, a}, collection.Files.Paths())
	})

	t.Run("symlink cycle terminates", func(t *testing.T) {
		dir := t.TempDir()
		root := filepath.Join(dir, "tree")
		a := writeText(t, filepath.Join(root, "a.txt"))
		require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

		collection := collect(t, root)
		require.Equal(t, []string{a}, collection.Files.Paths())
	})

	t.Run("symlinked directory is followed", func(t *testing.T) {
		dir := t.TempDir()
		shared := writeText(t, filepath.Join(dir, "shared", "s.txt"))
		root := filepath.Join(dir, "tree")
		require.NoError(t, os.MkdirAll(root, 0o755))
		require.NoError(t, os.Symlink(filepath.Dir(shared), filepath.Join(root, "link")))

		collection := collect(t, root)
		require.Equal(t, []string{filepath.Join(root, "link", "s.txt")}, collection.Files.Paths())
	})

	t.Run("dangling symlink is kept as a file", func(t *testing.T) {
		dir := t.TempDir()
		root := filepath.Join(dir, "tree")
		require.NoError(t, os.MkdirAll(root, 0o755))
		dangling := filepath.Join(root, "dangling")
		require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), dangling))

		collection := collect(t, root)
		require.Equal(t, []string{dangling}, collection.Files.Paths())
	})

	t.Run("unreadable directory contributes nothing", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permissions are not enforced for root")
		}
		dir := t.TempDir()
		root := filepath.Join(dir, "tree")
		ok := writeText(t, filepath.Join(root, "ok", "a.txt"))
		writeText(t, filepath.Join(root, "locked", "secret.txt"))
		locked := filepath.Join(root, "locked")
		require.NoError(t, os.Chmod(locked, 0o000))
		t.Cleanup(func() { os.Chmod(locked, 0o755) })

		collection := collect(t, root)
		require.Equal(t, []string{ok}, collection.Files.Paths())
	})

	t.Run("cancelled context", func(t *testing.T) {
		dir := t.TempDir()
		writeText(t, filepath.Join(dir, "tree", "a.txt"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewCollector().Collect(ctx, []string{filepath.Join(dir, "tree")})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRelative(t *testing.T) {
	dir := t.TempDir()
	a := writeText(t, filepath.Join(dir, "x", "a.txt"))
	b := writeText(t, filepath.Join(dir, "y", "b.txt"))

	collection := collect(t, a, b)
	first, err := collection.Relative(collection.Files[0])
	require.NoError(t, err)
	require.Equal(t, "a.txt", first)

	second, err := collection.Relative(collection.Files[1])
	require.NoError(t, err)
	require.Equal(t, "../y/b.txt", second)
}
