// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"rubypack/internal/config"

	"github.com/spf13/cobra"
)

// detectFailCode is the layered protocol's exit code for "not my app".
const detectFailCode = 100

var (
	detectAppDir string

	detectCmd = &cobra.Command{
		Use:   "detect",
		Short: "Check whether the application is a Ruby app",
		Long: `Pass when the application directory contains a Gemfile.lock,
fail otherwise. A passing detection means 'rubypack build' can run.`,
		RunE: runDetect,
	}
)

func init() {
	detectCmd.Flags().StringVar(&detectAppDir, "app-dir", "", "application source directory (overrides config)")
}

func runDetect(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cfg, _, err := config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return reportFailure(err)
	}
	appDir := cfg.AppDir
	if detectAppDir != "" {
		appDir = detectAppDir
	}

	lockPath := filepath.Join(appDir, "Gemfile.lock")
	if _, err := os.Stat(lockPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("fail: ")+"no Gemfile.lock in "+appDir)
			return &ExitError{Code: detectFailCode}
		}
		return fmt.Errorf("check %s: %w", lockPath, err)
	}

	fmt.Fprintln(os.Stderr, SuccessStyle.Render("pass: ")+"found "+lockPath)
	return nil
}
