package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ozonos/grrr/go/flags"
	"github.com/ozonos/grrr/go/gresource"
	"github.com/ozonos/grrr/go/logging"
	"github.com/ozonos/grrr/go/settings"
)

// globalOpts are accepted by every command.
type globalOpts struct {
	Logging  *logging.Opts
	Settings string `long:"settings" env:"SETTINGS" description:"Settings file (default $XDG_DATA_HOME/grrr/config.json)"`
}

func (o *globalOpts) store() (*settings.Store, error) {
	path := o.Settings
	if path == "" {
		var err error
		if path, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return settings.NewStore(path), nil
}

// manifestOpts override the saved manifest settings for one run.
type manifestOpts struct {
	Name   string `long:"name" env:"RES_NAME" description:"Bundle file name (default: saved setting, then custom.gresource)"`
	Prefix string `long:"prefix" env:"RES_PREFIX" description:"Resource prefix (default: saved setting, then /org/gnome/custom)"`
}

// config reads the saved settings once and applies the overrides on top.
// Unreadable settings are logged and the defaults are used instead.
func (o *manifestOpts) config(store *settings.Store, log *slog.Logger) gresource.ManifestConfig {
	record, err := store.Load()
	if err != nil {
		log.Warn("loading settings, using defaults", "path", store.Path(), "error", err)
		record = settings.Record{}
	}
	cfg := record.Config()
	if o.Name != "" {
		cfg.Name = o.Name
	}
	if o.Prefix != "" {
		cfg.Prefix = o.Prefix
	}
	return cfg.WithDefaults()
}

// parse reads args into opts, sets up logging and returns the positional arguments.
// ok is false when only the usage was requested, in which case it has already been printed.
func parse(cmd *cobra.Command, opts any, global *globalOpts, args []string) (rest []string, log *slog.Logger, ok bool, err error) {
	rest, err = flags.ParseArgs(opts, cmd.CommandPath(), args)
	if err != nil {
		if flags.IsHelp(err) {
			fmt.Fprintln(cmd.OutOrStdout(), err.Error())
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	// Errors about the command line are reported without usage from here on.
	cmd.SilenceUsage = true
	if err := logging.Init(global.Logging); err != nil {
		return nil, nil, false, fmt.Errorf("initializing logging: %w", err)
	}
	return rest, slog.Default(), true, nil
}

func requirePaths(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no paths given: %w", gresource.ErrNoRoots)
	}
	return nil
}
