// Package bundler turns one drop of paths into a manifest and a compiled bundle.
package bundler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ozonos/grrr/go/compiler"
	"github.com/ozonos/grrr/go/gresource"
)

// Build is the manifest produced for one drop.
type Build struct {
	Config       gresource.ManifestConfig
	Collection   *gresource.Collection
	ManifestPath string
}

// Bundler runs the collect, manifest and compile steps for independent drops.
// Drops share nothing but the tracker that follows their jobs.
type Bundler struct {
	log       *slog.Logger
	collector *gresource.Collector
	invoker   *compiler.Invoker
	tracker   *compiler.Tracker
}

// New returns a bundler compiling with invoker.
func New(invoker *compiler.Invoker) *Bundler {
	return &Bundler{
		log:       slog.Default(),
		collector: gresource.NewCollector(),
		invoker:   invoker,
		tracker:   compiler.NewTracker(),
	}
}

// WithLogger sets the logger of the bundler and of its collector and tracker.
func (b *Bundler) WithLogger(logger *slog.Logger) *Bundler {
	b.log = logger
	b.collector.WithLogger(logger)
	b.tracker.WithLogger(logger)
	return b
}

// Tracker returns the tracker following the jobs started by Drop.
func (b *Bundler) Tracker() *compiler.Tracker { return b.tracker }

// BuildOnly collects paths and writes their manifest without compiling.
// cfg is captured by value; blank fields take their defaults.
func (b *Bundler) BuildOnly(ctx context.Context, paths []string, cfg gresource.ManifestConfig) (*Build, error) {
	cfg = cfg.WithDefaults()
	collection, err := b.collector.Collect(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}
	manifestPath, err := gresource.BuildManifest(collection, cfg)
	if err != nil {
		return nil, err
	}
	b.log.InfoContext(ctx, "wrote manifest", "path", manifestPath, "files", len(collection.Files), "prefix", cfg.Prefix)
	return &Build{Config: cfg, Collection: collection, ManifestPath: manifestPath}, nil
}

// Drop builds the manifest for paths and starts compiling it. It does not wait for the compiler:
// onComplete, which may be nil, receives the result once the process exits.
// A *gresource.WriteError or *compiler.LaunchError is returned as is for the caller to surface.
func (b *Bundler) Drop(ctx context.Context, paths []string, cfg gresource.ManifestConfig, onComplete func(*compiler.Result)) (*compiler.Job, error) {
	build, err := b.BuildOnly(ctx, paths, cfg)
	if err != nil {
		return nil, err
	}
	job, err := b.invoker.Compile(ctx, build.Collection.Base, build.ManifestPath, onComplete)
	if err != nil {
		return nil, err
	}
	b.tracker.Track(job)
	return job, nil
}

// Wait blocks until every job started by Drop has completed and returns their collected failures.
func (b *Bundler) Wait() error {
	return b.tracker.Wait()
}
