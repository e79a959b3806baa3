// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"rubypack/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "rubypack",
		Short: "A Ruby language-runtime buildpack",
		Long: TitleStyle.Render("rubypack") + SubtitleStyle.Render(" - A Ruby language-runtime buildpack") + `

rubypack turns a Ruby application source tree into a runnable build:
it installs the pinned Ruby runtime and Bundler, runs 'bundle install'
against a persistent layer cache, and exports the environment in
either the legacy shell-script format or layered env directory trees.

Versions are read from the application's Gemfile.lock; layers are
reused across builds until their recorded inputs change.

` + SubtitleStyle.Render("Examples:") + `
  rubypack detect           Check whether the app is a Ruby app
  rubypack build            Run the full layer sequence and export env
  rubypack build --app-dir /workspace --layers-dir /layers`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rubypack.toml)")

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(detectCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// ExitError signals a specific exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// reportFailure prints remediation text for errors that carry a registered
// issue, then hands the error back for cobra's own rendering.
func reportFailure(err error) error {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return err
	}
	if verbose {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+ae.Detail())
	}
	if registered := issue.Lookup(ae.IssueId); registered != nil {
		if rendered, renderErr := registered.Render(); renderErr == nil {
			fmt.Fprintln(os.Stderr, rendered)
		}
	}
	return err
}
