// SPDX-License-Identifier: MPL-2.0

package build

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"rubypack/internal/config"
	"rubypack/internal/envreg"
	"rubypack/internal/ruby"
)

// fakeRunner records installer invocations instead of executing them.
type fakeRunner struct {
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ []string, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil
}

func (f *fakeRunner) commands() []string {
	var out []string
	for _, call := range f.calls {
		out = append(out, strings.Join(call[:2], " "))
	}
	return out
}

// fakeEnv is a map-backed process environment.
type fakeEnv map[string]string

func (e fakeEnv) setenv(key, value string) error { e[key] = value; return nil }

func (e fakeEnv) lookup(key string) (string, bool) { v, ok := e[key]; return v, ok }

type fixture struct {
	cfg    *config.Config
	runner *fakeRunner
	env    fakeEnv
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeRubyArchive(t *testing.T, artifactDir, version string) {
	t.Helper()
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(artifactDir, "ruby-"+version+".tgz"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	body := []byte("#!/bin/sh\necho " + version + "\n")
	if err := tw.WriteHeader(&tar.Header{Name: "bin/ruby", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(body))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T, iface config.Interface) *fixture {
	t.Helper()
	root := t.TempDir()
	appDir := filepath.Join(root, "app")
	writeFile(t, filepath.Join(appDir, "Gemfile"), "source 'https://rubygems.org'\ngem 'rack'\n")
	writeFile(t, filepath.Join(appDir, "Gemfile.lock"), `
GEM
  remote: https://rubygems.org/
  specs:
    rack (3.0.8)

RUBY VERSION
   ruby 3.2.1p31

BUNDLED WITH
   2.4.10
`)
	writeFile(t, filepath.Join(root, "os-release"), "ID=ubuntu\nVERSION_ID=\"22.04\"\n")
	writeRubyArchive(t, filepath.Join(root, "artifacts"), "3.2.1")

	return &fixture{
		cfg: &config.Config{
			AppDir:                appDir,
			LayersDir:             filepath.Join(root, "layers"),
			Interface:             iface,
			ArtifactDir:           filepath.Join(root, "artifacts"),
			DefaultRubyVersion:    "3.1.4",
			DefaultBundlerVersion: "2.4.10",
			BundleWithout:         "development:test",
		},
		runner: &fakeRunner{},
		env:    fakeEnv{},
	}
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	b := New(Options{
		Config:        f.cfg,
		Logger:        log.New(io.Discard),
		Runner:        f.runner,
		Registry:      envreg.New(envreg.WithProcessEnv(f.env.setenv, f.env.lookup)),
		OSReleasePath: filepath.Join(filepath.Dir(f.cfg.AppDir), "os-release"),
		Environ:       func() []string { return []string{"USER=test"} },
		LookupEnv:     func(string) (string, bool) { return "", false },
	})
	return b.Run(context.Background())
}

func TestRun_LayeredBuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.InterfaceCNB)
	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The prefetched runtime was unpacked into the ruby layer.
	if _, err := os.Stat(filepath.Join(f.cfg.LayersDir, LayerRuby, "bin", "ruby")); err != nil {
		t.Errorf("ruby layer not populated: %v", err)
	}

	// Installers ran in order.
	want := []string{"gem install", "bundle install"}
	if got := f.runner.commands(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("installer commands = %v, want %v", got, want)
	}

	// Contributions landed in the live environment.
	if path := f.env["PATH"]; !strings.Contains(path, filepath.Join(f.cfg.LayersDir, LayerRuby, "bin")) {
		t.Errorf("PATH = %q missing ruby bin", path)
	}
	if f.env["RAILS_ENV"] != "production" {
		t.Errorf("RAILS_ENV = %q", f.env["RAILS_ENV"])
	}
	if f.env["BUNDLE_PATH"] != filepath.Join(f.cfg.LayersDir, LayerGems) {
		t.Errorf("BUNDLE_PATH = %q", f.env["BUNDLE_PATH"])
	}

	// The layered export wrote env trees and manifests for every layer.
	content, err := os.ReadFile(filepath.Join(f.cfg.LayersDir, LayerEnvDefaults, "env.launch", "RAILS_ENV.default"))
	if err != nil {
		t.Fatalf("env defaults export missing: %v", err)
	}
	if string(content) != "production" {
		t.Errorf("RAILS_ENV.default = %q", content)
	}
	for _, name := range []string{LayerEnvDefaults, LayerSecretKeyBase, LayerRuby, LayerBundler, LayerGems} {
		if _, err := os.Stat(filepath.Join(f.cfg.LayersDir, name+".toml")); err != nil {
			t.Errorf("manifest for %s missing: %v", name, err)
		}
	}
}

func TestRun_SecondBuildReusesEveryLayer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.InterfaceCNB)
	if err := f.run(t); err != nil {
		t.Fatal(err)
	}
	firstSecret := f.env["SECRET_KEY_BASE"]
	if firstSecret == "" {
		t.Fatal("first build set no SECRET_KEY_BASE")
	}

	f.runner = &fakeRunner{}
	f.env = fakeEnv{}
	if err := f.run(t); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("second build ran installers %v on an unchanged app", f.runner.commands())
	}
	if f.env["SECRET_KEY_BASE"] != firstSecret {
		t.Error("second build regenerated SECRET_KEY_BASE instead of reusing the stored one")
	}
}

func TestRun_RubyVersionChangeReinstalls(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.InterfaceCNB)
	if err := f.run(t); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(f.cfg.AppDir, "Gemfile.lock"), "RUBY VERSION\n   ruby 3.3.0\n\nBUNDLED WITH\n   2.4.10\n")
	writeRubyArchive(t, f.cfg.ArtifactDir, "3.3.0")

	f.runner = &fakeRunner{}
	f.env = fakeEnv{}
	if err := f.run(t); err != nil {
		t.Fatalf("Run() after version change error = %v", err)
	}

	// A new runtime invalidates both the ruby layer and the gems layer
	// (native extensions bind to the Ruby version), but not bundler.
	if got := f.runner.commands(); len(got) != 1 || got[0] != "bundle install" {
		t.Errorf("installer commands = %v, want just bundle install", got)
	}
	unpacked, err := os.ReadFile(filepath.Join(f.cfg.LayersDir, LayerRuby, "bin", "ruby"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(unpacked), "3.3.0") {
		t.Error("ruby layer still holds the previous runtime")
	}
}

func TestRun_LegacyInterfaceWritesScripts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.InterfaceLegacy)
	if err := f.run(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	exportScript, err := os.ReadFile(filepath.Join(f.cfg.AppDir, "export"))
	if err != nil {
		t.Fatalf("build export script missing: %v", err)
	}
	if !strings.Contains(string(exportScript), `export RAILS_ENV="production"`) {
		t.Errorf("export script missing defaults:\n%s", exportScript)
	}
	rubyBin := filepath.Join(f.cfg.AppDir, legacyCacheDir, LayerRuby, "bin")
	if !strings.Contains(string(exportScript), `export PATH="`+rubyBin) {
		t.Errorf("export script missing ruby PATH entry:\n%s", exportScript)
	}

	profile, err := os.ReadFile(filepath.Join(f.cfg.AppDir, ".profile.d", "ruby.sh"))
	if err != nil {
		t.Fatalf("profile script missing: %v", err)
	}
	if !strings.Contains(string(profile), "$HOME/"+legacyCacheDir) {
		t.Errorf("profile script did not rewrite app-root paths:\n%s", profile)
	}
	if !strings.Contains(string(profile), `export RAILS_ENV="${RAILS_ENV:-production}"`) {
		t.Errorf("profile script did not wrap defaults:\n%s", profile)
	}
}

func TestRun_SkipDigestRunsBundleInstallEveryBuild(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.InterfaceCNB)
	skipLookup := func(key string) (string, bool) {
		if key == ruby.SkipDigestEnvKey {
			return "1", true
		}
		return "", false
	}
	run := func() {
		t.Helper()
		b := New(Options{
			Config:        f.cfg,
			Logger:        log.New(io.Discard),
			Runner:        f.runner,
			Registry:      envreg.New(envreg.WithProcessEnv(f.env.setenv, f.env.lookup)),
			OSReleasePath: filepath.Join(filepath.Dir(f.cfg.AppDir), "os-release"),
			Environ:       func() []string { return []string{"USER=test"} },
			LookupEnv:     skipLookup,
		})
		if err := b.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	run()
	f.runner = &fakeRunner{}
	f.env = fakeEnv{}
	run()

	if got := f.runner.commands(); len(got) != 1 || got[0] != "bundle install" {
		t.Errorf("second build commands = %v, want bundle install forced by skip digest", got)
	}
}

func TestRun_MissingGemfileLockFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.InterfaceCNB)
	if err := os.Remove(filepath.Join(f.cfg.AppDir, "Gemfile.lock")); err != nil {
		t.Fatal(err)
	}
	if err := f.run(t); err == nil {
		t.Fatal("Run() succeeded without a Gemfile.lock")
	}
}
