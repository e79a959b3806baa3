// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := Load(context.Background(), LoadOptions{WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty when no file exists", path)
	}
	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	wrote := writeConfigFile(t, dir, `
interface = 'legacy'
layers_dir = '/tmp/cache'
default_ruby_version = '3.3.0'
verbose = true
`)

	cfg, path, err := Load(context.Background(), LoadOptions{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != wrote {
		t.Errorf("resolved path = %q, want %q", path, wrote)
	}
	if cfg.Interface != InterfaceLegacy {
		t.Errorf("Interface = %q, want legacy", cfg.Interface)
	}
	if cfg.LayersDir != "/tmp/cache" {
		t.Errorf("LayersDir = %q", cfg.LayersDir)
	}
	if cfg.DefaultRubyVersion != "3.3.0" {
		t.Errorf("DefaultRubyVersion = %q", cfg.DefaultRubyVersion)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want true")
	}
	// Unset fields keep their defaults.
	if cfg.BundleWithout != DefaultConfig().BundleWithout {
		t.Errorf("BundleWithout = %q, want default", cfg.BundleWithout)
	}
}

func TestLoad_SchemaViolationNamesField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfigFile(t, dir, `interface = 'docker'`)

	_, _, err := Load(context.Background(), LoadOptions{WorkDir: dir})
	if err == nil {
		t.Fatal("Load() accepted a value outside the schema disjunction")
	}
	if !strings.Contains(err.Error(), "interface") {
		t.Errorf("error %q does not name the offending field", err)
	}
}

func TestLoad_MalformedVersionRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfigFile(t, dir, `default_ruby_version = 'latest'`)

	if _, _, err := Load(context.Background(), LoadOptions{WorkDir: dir}); err == nil {
		t.Fatal("Load() accepted a non-semver ruby version")
	}
}

func TestLoad_InvalidTOMLSyntax(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfigFile(t, dir, `interface = [broken`)

	if _, _, err := Load(context.Background(), LoadOptions{WorkDir: dir}); err == nil {
		t.Fatal("Load() accepted malformed TOML")
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.toml")
	if _, _, err := Load(context.Background(), LoadOptions{ConfigFilePath: missing}); err == nil {
		t.Fatal("Load() ignored a missing explicit config path")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `layers_dir = '/from-file'`)
	t.Setenv("RUBYPACK_LAYERS_DIR", "/from-env")
	t.Setenv("RUBYPACK_VERBOSE", "true")

	cfg, _, err := Load(context.Background(), LoadOptions{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LayersDir != "/from-env" {
		t.Errorf("LayersDir = %q, want env override to win", cfg.LayersDir)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want env override to coerce true")
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestInterface_IsValid(t *testing.T) {
	t.Parallel()

	for _, valid := range []Interface{InterfaceLegacy, InterfaceCNB} {
		if ok, _ := valid.IsValid(); !ok {
			t.Errorf("IsValid(%q) = false", valid)
		}
	}
	ok, errs := Interface("docker").IsValid()
	if ok {
		t.Fatal("IsValid(docker) = true")
	}
	if !errors.Is(errs[0], ErrInvalidInterface) {
		t.Errorf("error %v does not wrap ErrInvalidInterface", errs[0])
	}
}

func TestConfig_IsValid_WhitespacePath(t *testing.T) {
	t.Parallel()

	cfg := *DefaultConfig()
	cfg.AppDir = "   "
	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("IsValid() accepted a whitespace-only app_dir")
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Errorf("error %v does not wrap ErrInvalidConfig", errs[0])
	}
}
