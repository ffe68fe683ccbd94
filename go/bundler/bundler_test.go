package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ozonos/grrr/go/compiler"
	"github.com/ozonos/grrr/go/gresource"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func writeFile(t *testing.T, path string, content []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// stubCompiler copies the manifest it is given to the bundle path, like a trivial compiler would.
func stubCompiler(t *testing.T, exitCode int) string {
	t.Helper()
	script := "#!/bin/sh\ncp \"$1\" \"${1%.xml}.out\"\nexit " + strconv.Itoa(exitCode) + "\n"
	path := filepath.Join(t.TempDir(), "stub-compiler")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestDrop(t *testing.T) {
	t.Run("collect, build and compile", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, filepath.Join(dir, "x", "a.png"), pngHeader)
		b := writeFile(t, filepath.Join(dir, "x", "sub", "b.txt"), []byte("hello\n"))
		bundler := New(compiler.NewInvoker(&compiler.Opts{Executable: stubCompiler(t, 0)}))

		var calls atomic.Int32
		job, err := bundler.Drop(context.Background(), []string{a, b}, gresource.ManifestConfig{}, func(*compiler.Result) { calls.Add(1) })
		require.NoError(t, err)
		require.NoError(t, bundler.Wait())
		require.Equal(t, int32(1), calls.Load())

		result := job.Result()
		require.NotNil(t, result)
		require.Equal(t, filepath.Join(dir, "x"), result.Base)
		require.Equal(t, "custom.gresource.xml", result.ManifestFile)

		compiled, err := os.ReadFile(filepath.Join(dir, "x", "custom.gresource.out"))
		require.NoError(t, err)
		require.Contains(t, string(compiled), "<file preprocess=\"to-pixdata\">a.png</file>\n\t\t<file>sub/b.txt</file>")
	})

	t.Run("config is captured at drop time", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, filepath.Join(dir, "a.txt"), []byte("a\n"))
		bundler := New(compiler.NewInvoker(&compiler.Opts{Executable: stubCompiler(t, 0)}))
		cfg := gresource.ManifestConfig{Name: "first.gresource", Prefix: "/org/first"}

		_, err := bundler.Drop(context.Background(), []string{a}, cfg, nil)
		require.NoError(t, err)
		cfg.Prefix = "/org/changed"
		require.NoError(t, bundler.Wait())

		manifest, err := os.ReadFile(filepath.Join(dir, "first.gresource.xml"))
		require.NoError(t, err)
		require.Contains(t, string(manifest), `prefix="/org/first"`)
	})

	t.Run("independent drops", func(t *testing.T) {
		bundler := New(compiler.NewInvoker(&compiler.Opts{Executable: stubCompiler(t, 0)}))
		var bases []string
		for i := 0; i < 3; i++ {
			dir := t.TempDir()
			bases = append(bases, dir)
			_, err := bundler.Drop(context.Background(), []string{writeFile(t, filepath.Join(dir, "f.txt"), []byte("f\n"))}, gresource.DefaultManifestConfig(), nil)
			require.NoError(t, err)
		}
		require.NoError(t, bundler.Wait())
		require.Equal(t, 3, bundler.Tracker().Completed())
		for _, base := range bases {
			_, err := os.Stat(filepath.Join(base, "custom.gresource.out"))
			require.NoError(t, err)
		}
	})

	t.Run("compiler failure is collected", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, filepath.Join(dir, "a.txt"), []byte("a\n"))
		bundler := New(compiler.NewInvoker(&compiler.Opts{Executable: stubCompiler(t, 2)}))

		_, err := bundler.Drop(context.Background(), []string{a}, gresource.DefaultManifestConfig(), nil)
		require.NoError(t, err)
		err = bundler.Wait()
		var exitErr *compiler.ExitError
		require.ErrorAs(t, err, &exitErr)
		require.Equal(t, 2, exitErr.ExitCode)
	})

	t.Run("launch failure is returned and nothing is tracked", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, filepath.Join(dir, "a.txt"), []byte("a\n"))
		bundler := New(compiler.NewInvoker(&compiler.Opts{Executable: "grrr-no-such-compiler"}))

		_, err := bundler.Drop(context.Background(), []string{a}, gresource.DefaultManifestConfig(), nil)
		var launchErr *compiler.LaunchError
		require.ErrorAs(t, err, &launchErr)
		require.Equal(t, 0, bundler.Tracker().Running())
		require.NoError(t, bundler.Wait())
		// The manifest was still written before the launch was attempted.
		_, err = os.Stat(filepath.Join(dir, "custom.gresource.xml"))
		require.NoError(t, err)
	})

	t.Run("write failure is returned", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, filepath.Join(dir, "a.txt"), []byte("a\n"))
		writeFile(t, filepath.Join(dir, "custom.gresource.xml", "keep"), []byte("k\n"))
		bundler := New(compiler.NewInvoker(&compiler.Opts{Executable: stubCompiler(t, 0)}))

		_, err := bundler.Drop(context.Background(), []string{a}, gresource.DefaultManifestConfig(), nil)
		var writeErr *gresource.WriteError
		require.ErrorAs(t, err, &writeErr)
	})

	t.Run("missing path", func(t *testing.T) {
		bundler := New(compiler.NewInvoker(nil))
		_, err := bundler.Drop(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, gresource.DefaultManifestConfig(), nil)
		require.ErrorIs(t, err, os.ErrNotExist)
		require.True(t, strings.HasPrefix(err.Error(), "collecting files"))
	})
}

func TestBuildOnly(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "res", "a.txt"), []byte("a\n"))

	build, err := New(compiler.NewInvoker(nil)).BuildOnly(context.Background(), []string{filepath.Dir(a)}, gresource.ManifestConfig{Name: "demo"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "demo.xml"), build.ManifestPath)
	require.Equal(t, gresource.ManifestConfig{Name: "demo", Prefix: gresource.DefaultPrefix}, build.Config)
	require.Len(t, build.Collection.Files, 1)
}

func TestBuildOnlyCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "res", "a.txt"), []byte("a\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(compiler.NewInvoker(nil)).BuildOnly(ctx, []string{filepath.Join(dir, "res")}, gresource.DefaultManifestConfig())
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(filepath.Join(dir, gresource.DefaultName+".xml"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}
