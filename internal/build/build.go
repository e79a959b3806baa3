// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"rubypack/internal/config"
	"rubypack/internal/envreg"
	"rubypack/internal/export"
	"rubypack/internal/issue"
	"rubypack/internal/layer"
	"rubypack/internal/ruby"
	"rubypack/internal/store"
)

// Layer names, in processing order.
const (
	LayerEnvDefaults   = "env_defaults"
	LayerSecretKeyBase = "secret_key_base"
	LayerRuby          = "ruby"
	LayerBundler       = "bundler"
	LayerGems          = "gems"
)

// legacyCacheDir is where layer caches live inside the app dir when the
// legacy protocol provides no layers directory of its own.
const legacyCacheDir = ".rubypack"

// Options configures a Builder. Config is required; every other field has a
// production default and exists so tests can substitute fakes.
type Options struct {
	Config *config.Config
	Logger *log.Logger

	// Runner executes installer subprocesses. Defaults to ruby.ExecRunner
	// streaming to stderr.
	Runner ruby.Runner

	// Registry receives environment contributions. Defaults to a registry
	// bound to the real process environment.
	Registry *envreg.Registry

	// OSReleasePath identifies the build host. Defaults to /etc/os-release.
	OSReleasePath string

	// Environ supplies the user environment fingerprinted by the gems
	// layer. Defaults to os.Environ.
	Environ func() []string

	// LookupEnv checks for the digest skip variable. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Builder runs the layer sequence for one application build.
type Builder struct {
	cfg       *config.Config
	logger    *log.Logger
	runner    ruby.Runner
	reg       *envreg.Registry
	osRelease string
	environ   func() []string
	lookupEnv func(string) (string, bool)

	st     *store.Store
	layers []export.LayerInfo
}

// New assembles a Builder, filling in production defaults for unset options.
func New(opts Options) *Builder {
	b := &Builder{
		cfg:       opts.Config,
		logger:    opts.Logger,
		runner:    opts.Runner,
		reg:       opts.Registry,
		osRelease: opts.OSReleasePath,
		environ:   opts.Environ,
		lookupEnv: opts.LookupEnv,
	}
	if b.logger == nil {
		b.logger = log.Default()
	}
	if b.runner == nil {
		b.runner = &ruby.ExecRunner{Stdout: os.Stderr, Stderr: os.Stderr}
	}
	if b.reg == nil {
		b.reg = envreg.New()
	}
	if b.osRelease == "" {
		b.osRelease = "/etc/os-release"
	}
	if b.environ == nil {
		b.environ = os.Environ
	}
	if b.lookupEnv == nil {
		b.lookupEnv = os.LookupEnv
	}
	return b
}

// Run executes the build: reads the application's version pins, processes
// every layer in order, and flushes the environment plan in the active
// protocol's format.
func (b *Builder) Run(ctx context.Context) error {
	// The user environment is captured before any layer mutates it, so the
	// gems fingerprint reflects what the user supplied, not what we set.
	userEnv := b.environ()

	lock, err := ruby.ReadGemfileLock(filepath.Join(b.cfg.AppDir, "Gemfile.lock"))
	if err != nil {
		return err
	}
	target, err := ruby.DetectTarget(b.osRelease)
	if err != nil {
		return err
	}

	b.st = store.New(b.layersRoot())

	if err := b.envDefaultsLayer(); err != nil {
		return err
	}
	if err := b.secretKeyBaseLayer(ctx); err != nil {
		return err
	}
	rubyVersion := lock.RubyVersion.Resolve(b.cfg.DefaultRubyVersion)
	if err := b.rubyLayer(ctx, target, rubyVersion, lock.RubyVersion.Source()); err != nil {
		return err
	}
	if err := b.bundlerLayer(ctx, lock.BundlerVersion.Resolve(b.cfg.DefaultBundlerVersion), lock.BundlerVersion.Source()); err != nil {
		return err
	}
	if err := b.gemsLayer(ctx, target, rubyVersion, userEnv); err != nil {
		return err
	}

	return b.flushExport()
}

// layersRoot returns the durable store root for the active protocol. The
// legacy protocol has no layers directory, so caches live inside the app.
func (b *Builder) layersRoot() string {
	if b.cfg.Interface == config.InterfaceLegacy {
		return filepath.Join(b.cfg.AppDir, legacyCacheDir)
	}
	return b.cfg.LayersDir
}

func (b *Builder) envDefaultsLayer() error {
	b.declareLayer(LayerEnvDefaults, store.Flags{Build: true, Launch: true})
	for _, def := range ruby.EnvDefaults {
		if err := b.setDefault(LayerEnvDefaults, def.Key, def.Value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) secretKeyBaseLayer(ctx context.Context) error {
	flags := store.Flags{Build: true, Cache: true, Launch: true}
	b.declareLayer(LayerSecretKeyBase, flags)

	generated, err := ruby.GenerateSecretKeyBase()
	if err != nil {
		return err
	}
	ctrl := layer.NewController(
		layer.Definition{Name: LayerSecretKeyBase, Flags: flags},
		b.st, ruby.SecretKeyBaseChain, b.logger,
	)
	// The layer carries no content; the secret lives in its metadata.
	noop := layer.InstallerFunc[ruby.SecretKeyBaseMetadata](
		func(context.Context, ruby.SecretKeyBaseMetadata, string) error { return nil },
	)
	res, err := ctrl.Ensure(ctx, ruby.SecretKeyBaseMetadata{SecretKeyBase: generated}, noop)
	if err != nil {
		return err
	}

	secret := generated
	if res.Decision.State == layer.StateValid {
		secret = res.Stored.SecretKeyBase
	}
	return b.setDefault(LayerSecretKeyBase, "SECRET_KEY_BASE", secret)
}

func (b *Builder) rubyLayer(ctx context.Context, target ruby.Target, version, source string) error {
	flags := store.Flags{Build: true, Cache: true, Launch: true}
	b.declareLayer(LayerRuby, flags)
	b.logger.Info("Installing Ruby", "version", version, "source", source)

	ctrl := layer.NewController(
		layer.Definition{Name: LayerRuby, Flags: flags},
		b.st, ruby.RuntimeChain, b.logger,
	)
	res, err := ctrl.Ensure(ctx, ruby.NewRuntimeMetadata(target, version), ruby.RuntimeInstaller(b.cfg.ArtifactDir))
	if err != nil {
		return err
	}
	return b.prepend(LayerRuby, "PATH", filepath.Join(res.Dir, "bin"))
}

func (b *Builder) bundlerLayer(ctx context.Context, version, source string) error {
	flags := store.Flags{Build: true, Cache: true, Launch: true}
	b.declareLayer(LayerBundler, flags)
	b.logger.Info("Installing Bundler", "version", version, "source", source)

	ctrl := layer.NewController(
		layer.Definition{Name: LayerBundler, Flags: flags},
		b.st, ruby.BundlerChain, b.logger,
	)
	res, err := ctrl.Ensure(ctx, ruby.BundlerMetadata{Version: version}, ruby.BundlerInstaller(b.runner))
	if err != nil {
		return err
	}
	if err := b.prepend(LayerBundler, "PATH", filepath.Join(res.Dir, "bin")); err != nil {
		return err
	}
	return b.prepend(LayerBundler, "GEM_PATH", res.Dir)
}

func (b *Builder) gemsLayer(ctx context.Context, target ruby.Target, rubyVersion string, userEnv []string) error {
	flags := store.Flags{Build: true, Cache: true, Launch: true}
	b.declareLayer(LayerGems, flags)

	digest, err := b.bundleDigest(userEnv)
	if err != nil {
		return err
	}

	// Bundler reads its configuration from the environment, so these must
	// be live before `bundle install` runs.
	gemsDir := b.st.LayerDir(LayerGems)
	for _, v := range []struct{ key, value string }{
		{"BUNDLE_PATH", gemsDir},
		{"BUNDLE_BIN", filepath.Join(gemsDir, "bin")},
		{"BUNDLE_GEMFILE", filepath.Join(b.cfg.AppDir, "Gemfile")},
		{"BUNDLE_CLEAN", "1"},
		{"BUNDLE_DEPLOYMENT", "1"},
	} {
		if err := b.setOverride(LayerGems, v.key, v.value); err != nil {
			return err
		}
	}
	if err := b.setDefault(LayerGems, "BUNDLE_WITHOUT", b.cfg.BundleWithout); err != nil {
		return err
	}
	if err := b.prepend(LayerGems, "GEM_PATH", gemsDir); err != nil {
		return err
	}

	b.logger.Info("Installing dependencies", "command", "bundle install")
	ctrl := layer.NewController(
		layer.Definition{Name: LayerGems, Flags: flags},
		b.st, ruby.GemsChain, b.logger,
	)
	_, err = ctrl.Ensure(ctx, ruby.NewGemsMetadata(target, rubyVersion, digest), ruby.GemsInstaller(b.runner, b.cfg.AppDir))
	return err
}

// bundleDigest fingerprints the gems layer inputs, or returns a
// never-matching value when the user opted out of skipping.
func (b *Builder) bundleDigest(userEnv []string) (string, error) {
	if value, ok := b.lookupEnv(ruby.SkipDigestEnvKey); ok {
		b.logger.Info(fmt.Sprintf("Found %s=%s, bundle install will run every build", ruby.SkipDigestEnvKey, value))
		return ruby.SkippedDigest(), nil
	}
	return ruby.BundleDigest(b.cfg.AppDir, userEnv)
}

func (b *Builder) flushExport() error {
	plan := b.reg.Plan()
	if b.cfg.Interface == config.InterfaceLegacy {
		return export.WriteLegacy(plan, b.cfg.AppDir)
	}
	return export.WriteLayered(plan, b.layers, b.layersRoot())
}

// declareLayer records a layer for the layered backend's manifest output.
func (b *Builder) declareLayer(name string, flags store.Flags) {
	b.layers = append(b.layers, export.LayerInfo{Name: name, Flags: flags})
}

func (b *Builder) setOverride(layerName, key, value string) error {
	v, err := b.reg.Register(key, envreg.Override)
	if err != nil {
		return conflictError(err)
	}
	if err := v.Set(layerName, value); err != nil {
		return conflictError(err)
	}
	return nil
}

func (b *Builder) setDefault(layerName, key, value string) error {
	v, err := b.reg.Register(key, envreg.Default)
	if err != nil {
		return conflictError(err)
	}
	if err := v.Set(layerName, value); err != nil {
		return conflictError(err)
	}
	return nil
}

func (b *Builder) prepend(layerName, key string, paths ...string) error {
	v, err := b.reg.Register(key, envreg.Prepend)
	if err != nil {
		return conflictError(err)
	}
	if err := v.PrependPaths(layerName, paths...); err != nil {
		return conflictError(err)
	}
	return nil
}

// conflictError marks registry conflicts as buildpack bugs; other failures
// (setenv errors) pass through untouched.
func conflictError(err error) error {
	var conflict *envreg.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("contribute environment").
		WithResource(conflict.Key).
		WithSuggestion("Report this build's output to the buildpack maintainers").
		WithIssue(issue.EnvContributionConflictId).
		Wrap(err).
		Build()
}
