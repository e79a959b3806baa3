// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"rubypack/internal/issue"
	"rubypack/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "rubypack"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "rubypack"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix is the prefix for environment variable overrides,
	// e.g. RUBYPACK_LAYERS_DIR overrides layers_dir.
	EnvPrefix = "RUBYPACK"
)

//go:embed config_schema.cue
var configSchema string

// LoadOptions controls where Load looks for a config file.
type LoadOptions struct {
	// ConfigFilePath is an explicit config file path (from a --config flag).
	// When set, it is used exclusively and must exist.
	ConfigFilePath string

	// WorkDir is the directory searched for rubypack.toml when no explicit
	// path is given. Empty means the current directory.
	WorkDir string
}

// Load resolves the configuration from defaults, an optional config file,
// and RUBYPACK_* environment variables, in that order of precedence. It
// returns the config and the path of the file it was loaded from ("" when
// only defaults and environment applied).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("app_dir", defaults.AppDir)
	v.SetDefault("layers_dir", defaults.LayersDir)
	v.SetDefault("interface", string(defaults.Interface))
	v.SetDefault("artifact_dir", defaults.ArtifactDir)
	v.SetDefault("default_ruby_version", defaults.DefaultRubyVersion)
	v.SetDefault("default_bundler_version", defaults.DefaultBundlerVersion)
	v.SetDefault("bundle_without", defaults.BundleWithout)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				Build()
		}
		if err := loadTOMLIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", configFileError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		workDir := opts.WorkDir
		if workDir == "" {
			workDir = "."
		}
		tomlPath := filepath.Join(workDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(tomlPath) {
			if err := loadTOMLIntoViper(v, tomlPath); err != nil {
				return nil, "", configFileError(tomlPath, err)
			}
			resolvedPath = tomlPath
		}
		// No config file found: defaults plus environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		// Environment overrides arrive as strings; coerce them into
		// typed fields (verbose=true).
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check the field values against the documented schema").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			Build()
	}

	return &cfg, resolvedPath, nil
}

// configFileError wraps a file load failure with remediation context.
func configFileError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid TOML syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Remove the file to fall back to defaults").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		Build()
}

// loadTOMLIntoViper parses a TOML config file, validates it against the
// #Config schema, and merges its contents into Viper.
func loadTOMLIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	var configMap map[string]any
	if err := toml.Unmarshal(data, &configMap); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateAgainstSchema(configMap, path); err != nil {
		return err
	}

	// Merge into Viper (preserves defaults, allows env overrides).
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// validateAgainstSchema checks the decoded config map against the embedded
// #Config schema. Concreteness is not required: every field is optional and
// unset fields keep their defaults.
func validateAgainstSchema(configMap map[string]any, path string) error {
	return cueutil.ValidateValue([]byte(configSchema), "#Config", configMap,
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
