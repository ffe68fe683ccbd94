package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testOpts struct {
	Name   string `long:"name" env:"RES_NAME" default:"custom.gresource"`
	Prefix string `long:"prefix" env:"RES_PREFIX" default:"/org/gnome/custom"`
}

type nestedOpts struct {
	Compiler string `long:"compiler" env:"COMPILER" default:"glib-compile-resources"`
}

type commandOpts struct {
	Manifest testOpts
	Nested   *nestedOpts
}

func TestParseArgs(t *testing.T) {
	t.Run("defaults and positional args", func(t *testing.T) {
		opts := &testOpts{}
		rest, err := ParseArgs(opts, "grrr", []string{"a.png", "sub"})
		require.NoError(t, err)
		require.Equal(t, []string{"a.png", "sub"}, rest)
		require.Equal(t, "custom.gresource", opts.Name)
		require.Equal(t, "/org/gnome/custom", opts.Prefix)
	})

	t.Run("environment overrides default", func(t *testing.T) {
		t.Setenv("GRRR_RES_PREFIX", "/org/example/app")
		opts := &testOpts{}
		_, err := ParseArgs(opts, "grrr", nil)
		require.NoError(t, err)
		require.Equal(t, "/org/example/app", opts.Prefix)
	})

	t.Run("bare environment names are ignored", func(t *testing.T) {
		t.Setenv("RES_PREFIX", "/org/bare")
		opts := &testOpts{}
		_, err := ParseArgs(opts, "grrr", nil)
		require.NoError(t, err)
		require.Equal(t, "/org/gnome/custom", opts.Prefix)
	})

	t.Run("environment reaches nested option structs", func(t *testing.T) {
		t.Setenv("GRRR_RES_NAME", "env.gresource")
		t.Setenv("GRRR_COMPILER", "/opt/bin/compile")
		t.Setenv("COMPILER", "/usr/bin/other")
		opts := &commandOpts{}
		_, err := ParseArgs(opts, "grrr", nil)
		require.NoError(t, err)
		require.Equal(t, "env.gresource", opts.Manifest.Name)
		require.NotNil(t, opts.Nested)
		require.Equal(t, "/opt/bin/compile", opts.Nested.Compiler)
	})

	t.Run("help lists namespaced variables", func(t *testing.T) {
		_, err := ParseArgs(&commandOpts{}, "grrr", []string{"--help"})
		require.True(t, IsHelp(err))
		require.Contains(t, err.Error(), "$GRRR_RES_NAME")
		require.Contains(t, err.Error(), "$GRRR_COMPILER")
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		t.Setenv("GRRR_RES_NAME", "env.gresource")
		opts := &testOpts{}
		_, err := ParseArgs(opts, "grrr", []string{"--name", "flag.gresource"})
		require.NoError(t, err)
		require.Equal(t, "flag.gresource", opts.Name)
	})

	t.Run("help", func(t *testing.T) {
		_, err := ParseArgs(&testOpts{}, "grrr", []string{"--help"})
		require.True(t, IsHelp(err))
		require.Contains(t, err.Error(), "--prefix")
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := ParseArgs(&testOpts{}, "grrr", []string{"--bogus"})
		require.Error(t, err)
		require.False(t, IsHelp(err))
	})

	t.Run("double dash passes paths through", func(t *testing.T) {
		rest, err := ParseArgs(&testOpts{}, "grrr", []string{"--", "--weird-name.png"})
		require.NoError(t, err)
		require.Equal(t, []string{"--weird-name.png"}, rest)
	})
}
