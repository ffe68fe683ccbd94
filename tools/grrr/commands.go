package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozonos/grrr/go/bundler"
	"github.com/ozonos/grrr/go/compiler"
	"github.com/ozonos/grrr/go/gresource"
	"github.com/ozonos/grrr/go/notify"
	"github.com/ozonos/grrr/go/prometheus"
	"github.com/ozonos/grrr/go/settings"
	"github.com/ozonos/grrr/go/watch"
)

// Set at link time.
var version = "dev"

const stopTimeout = 5 * time.Second

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "grrr",
		Short:         "Bundle files and directories into a GResource",
		SilenceErrors: true,
	}
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Show or change the saved manifest settings",
	}
	configCommand.AddCommand(newConfigShowCommand(), newConfigSetCommand())
	root.AddCommand(newBuildCommand(), newCompileCommand(), newWatchCommand(), configCommand, newVersionCommand())
	return root
}

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "build [OPTIONS] PATH...",
		Short:              "Write the manifest for the given paths",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts struct {
				Global   globalOpts
				Manifest manifestOpts
			}
			paths, log, ok, err := parse(cmd, &opts, &opts.Global, args)
			if !ok || err != nil {
				return err
			}
			if err := requirePaths(paths); err != nil {
				return err
			}
			store, err := opts.Global.store()
			if err != nil {
				return err
			}
			build, err := bundler.New(compiler.NewInvoker(nil)).WithLogger(log).
				BuildOnly(cmd.Context(), paths, opts.Manifest.config(store, log))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), build.ManifestPath)
			return nil
		},
	}
}

func newCompileCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "compile [OPTIONS] PATH...",
		Short:              "Write the manifest for the given paths and compile it",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts struct {
				Global   globalOpts
				Manifest manifestOpts
				Compiler *compiler.Opts
				Notify   *notify.Opts
			}
			paths, log, ok, err := parse(cmd, &opts, &opts.Global, args)
			if !ok || err != nil {
				return err
			}
			if err := requirePaths(paths); err != nil {
				return err
			}
			store, err := opts.Global.store()
			if err != nil {
				return err
			}
			invoker := compiler.NewInvoker(opts.Compiler).WithLogger(log).WithNotifier(notify.New(opts.Notify))
			b := bundler.New(invoker).WithLogger(log)
			job, err := b.Drop(cmd.Context(), paths, opts.Manifest.config(store, log), nil)
			if err != nil {
				return err
			}
			if err := b.Wait(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), job.Result().Bundle)
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "watch [OPTIONS] PATH...",
		Short:              "Rebuild and recompile whenever the given paths change",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts struct {
				Global   globalOpts
				Manifest manifestOpts
				Compiler *compiler.Opts
				Notify   *notify.Opts
				Watch    *watch.Opts
				Metrics  *prometheus.Opts
			}
			paths, log, ok, err := parse(cmd, &opts, &opts.Global, args)
			if !ok || err != nil {
				return err
			}
			if err := requirePaths(paths); err != nil {
				return err
			}
			store, err := opts.Global.store()
			if err != nil {
				return err
			}
			cfg := opts.Manifest.config(store, log)
			base, err := gresource.ResolveBase(paths)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			watcher, err := watch.NewWatcher(opts.Watch.Debounce)
			if err != nil {
				return err
			}
			defer watcher.Close()
			watcher.WithLogger(log).Ignore(filepath.Join(base, cfg.ManifestFileName()), filepath.Join(base, cfg.BundleFileName()))
			if err := watcher.Add(paths...); err != nil {
				return err
			}
			watcher.Start(ctx)

			server := prometheus.NewServer(opts.Metrics).WithLogger(log)
			if err := server.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
				defer cancel()
				server.Stop(stopCtx)
			}()

			invoker := compiler.NewInvoker(opts.Compiler).WithLogger(log).WithNotifier(notify.New(opts.Notify))
			b := bundler.New(invoker).WithLogger(log)
			rebuild := func(ctx context.Context) error {
				job, err := b.Drop(ctx, paths, cfg, nil)
				if err != nil {
					return err
				}
				result, err := job.Wait(ctx)
				if err != nil {
					return err
				}
				return result.Err
			}
			permanent := make(chan error, 1)
			loop := watch.NewLoop("rebuild", rebuild, func(err error) { permanent <- err }).
				WithLogger(log).
				WithSignal(watcher.Signal()).
				WithConstantBackOff(opts.Watch.BackOff).
				WithMaxConsecutiveErrors(opts.Watch.MaxConsecutiveErrors).
				Start(ctx)

			var loopErr error
			select {
			case <-ctx.Done():
			case loopErr = <-permanent:
			}
			loop.Close()
			// Jobs still running are never cancelled; wait for them before exiting.
			if err := b.Wait(); err != nil {
				log.Debug("failed rebuilds", "error", err)
			}
			return loopErr
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "show [OPTIONS]",
		Short:              "Print the manifest settings in effect",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts struct {
				Global globalOpts
			}
			if _, _, ok, err := parse(cmd, &opts, &opts.Global, args); !ok || err != nil {
				return err
			}
			store, err := opts.Global.store()
			if err != nil {
				return err
			}
			record, err := store.Load()
			if err != nil {
				return err
			}
			cfg := record.Config()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "settings: %s\n", store.Path())
			fmt.Fprintf(out, "name:     %s\n", cfg.Name)
			fmt.Fprintf(out, "prefix:   %s\n", cfg.Prefix)
			fmt.Fprintf(out, "manifest: %s\n", cfg.ManifestFileName())
			fmt.Fprintf(out, "bundle:   %s\n", cfg.BundleFileName())
			return nil
		},
	}
}

var errNothingToSet = errors.New("nothing to set: pass --name and/or --prefix")

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:                "set [OPTIONS]",
		Short:              "Save the manifest name and prefix used by default",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts struct {
				Global   globalOpts
				Manifest manifestOpts
				Reset    bool `long:"reset" description:"Reset both settings to their defaults"`
			}
			if _, _, ok, err := parse(cmd, &opts, &opts.Global, args); !ok || err != nil {
				return err
			}
			if !opts.Reset && opts.Manifest.Name == "" && opts.Manifest.Prefix == "" {
				return errNothingToSet
			}
			store, err := opts.Global.store()
			if err != nil {
				return err
			}
			saved, err := store.Load()
			if err != nil {
				return err
			}
			draft := settings.NewDraft(saved)
			if opts.Reset {
				draft.SetName("")
				draft.SetPrefix("")
			}
			if opts.Manifest.Name != "" {
				draft.SetName(opts.Manifest.Name)
			}
			if opts.Manifest.Prefix != "" {
				draft.SetPrefix(opts.Manifest.Prefix)
			}
			changed, err := draft.Commit(store)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", store.Path())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "settings unchanged")
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "grrr", version)
		},
	}
}
