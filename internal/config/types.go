// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// InterfaceLegacy exports the build environment as shell scripts
	// (an export file for later build steps plus a .profile.d launch script).
	InterfaceLegacy Interface = "legacy"
	// InterfaceCNB exports the build environment as CNB layer env
	// directories under the layers directory.
	InterfaceCNB Interface = "cnb"
)

var (
	// ErrInvalidInterface is returned when an Interface value is not recognized.
	ErrInvalidInterface = errors.New("invalid interface")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Interface selects how the finished build environment is exported.
	Interface string

	// InvalidInterfaceError is returned when an Interface value is not
	// recognized. It wraps ErrInvalidInterface for errors.Is() compatibility.
	InvalidInterfaceError struct {
		Value Interface
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the build configuration.
	Config struct {
		// AppDir is the application source directory.
		AppDir string `json:"app_dir" mapstructure:"app_dir"`
		// LayersDir is where layer directories and metadata manifests live.
		LayersDir string `json:"layers_dir" mapstructure:"layers_dir"`
		// Interface selects the export protocol: "legacy" or "cnb".
		Interface Interface `json:"interface" mapstructure:"interface"`
		// ArtifactDir holds prefetched runtime archives (ruby-<version>.tgz).
		ArtifactDir string `json:"artifact_dir" mapstructure:"artifact_dir"`
		// DefaultRubyVersion is used when Gemfile.lock pins no Ruby version.
		DefaultRubyVersion string `json:"default_ruby_version" mapstructure:"default_ruby_version"`
		// DefaultBundlerVersion is used when Gemfile.lock has no BUNDLED WITH.
		DefaultBundlerVersion string `json:"default_bundler_version" mapstructure:"default_bundler_version"`
		// BundleWithout is the colon-separated gem groups excluded from install.
		BundleWithout string `json:"bundle_without" mapstructure:"bundle_without"`
		// Verbose enables debug-level build logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the Interface.
func (i Interface) String() string { return string(i) }

// IsValid returns whether the Interface is one of the defined protocols,
// and a list of validation errors if it is not.
func (i Interface) IsValid() (bool, []error) {
	switch i {
	case InterfaceLegacy, InterfaceCNB:
		return true, nil
	default:
		return false, []error{&InvalidInterfaceError{Value: i}}
	}
}

// Error implements the error interface for InvalidInterfaceError.
func (e *InvalidInterfaceError) Error() string {
	return fmt.Sprintf("invalid interface %q (valid: legacy, cnb)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidInterfaceError) Unwrap() error {
	return ErrInvalidInterface
}

// IsValid returns whether the Config has valid fields. It delegates to
// Interface.IsValid() and checks that path fields are not whitespace-only.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Interface.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, field := range []struct{ name, value string }{
		{"app_dir", c.AppDir},
		{"layers_dir", c.LayersDir},
		{"artifact_dir", c.ArtifactDir},
	} {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, fmt.Errorf("%s must be non-empty", field.name))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AppDir:                ".",
		LayersDir:             "layers",
		Interface:             InterfaceCNB,
		ArtifactDir:           "artifacts",
		DefaultRubyVersion:    "3.1.4",
		DefaultBundlerVersion: "2.4.10",
		BundleWithout:         "development:test",
		Verbose:               false,
	}
}
