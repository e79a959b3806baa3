// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"rubypack/internal/build"
	"rubypack/internal/config"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// buildAppDir overrides the configured application directory.
	buildAppDir string
	// buildLayersDir overrides the configured layers directory.
	buildLayersDir string
	// buildInterface overrides the configured export protocol.
	buildInterface string

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Install the Ruby toolchain and export the build environment",
		Long: `Run the full layer sequence for the application: environment
defaults, SECRET_KEY_BASE, the Ruby runtime, Bundler, and 'bundle
install' — each against a persistent cache that is reused until its
recorded inputs change. Once every layer has run, the accumulated
environment is written out in the active protocol's format.`,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVar(&buildAppDir, "app-dir", "", "application source directory (overrides config)")
	buildCmd.Flags().StringVar(&buildLayersDir, "layers-dir", "", "layers output directory (overrides config)")
	buildCmd.Flags().StringVar(&buildInterface, "interface", "", "export protocol: legacy or cnb (overrides config)")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, cfgPath, err := config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return reportFailure(err)
	}
	applyBuildFlags(cfg)
	if ok, errs := cfg.IsValid(); !ok {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger := newLogger(cfg.Verbose)
	if cfgPath != "" {
		logger.Debug("Loaded configuration", "path", cfgPath)
	}

	b := build.New(build.Options{Config: cfg, Logger: logger})
	if err := b.Run(cmd.Context()); err != nil {
		return reportFailure(err)
	}
	return nil
}

// applyBuildFlags layers command-line overrides on top of the loaded
// configuration. Flags win over both file and environment values.
func applyBuildFlags(cfg *config.Config) {
	if buildAppDir != "" {
		cfg.AppDir = buildAppDir
	}
	if buildLayersDir != "" {
		cfg.LayersDir = buildLayersDir
	}
	if buildInterface != "" {
		cfg.Interface = config.Interface(buildInterface)
	}
	if verbose {
		cfg.Verbose = true
	}
}

// newLogger builds the stderr logger used for build progress. Stdout stays
// reserved for protocol output.
func newLogger(verboseMode bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
	if verboseMode {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
