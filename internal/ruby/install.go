// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"rubypack/internal/issue"
	"rubypack/internal/layer"
)

// Runner executes an installer subprocess. The build engine treats the
// invocation as a single blocking call that succeeds or fails; streaming,
// retries, and command display belong to the implementation.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, streaming output to the given
// writers (the build's stderr, normally).
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// RuntimeInstaller populates the ruby layer from a prefetched archive named
// ruby-<version>.tgz in the artifact directory. The archive already contains
// a bin/ directory with the ruby executable.
func RuntimeInstaller(artifactDir string) layer.InstallerFunc[RuntimeMetadata] {
	return func(ctx context.Context, desired RuntimeMetadata, dir string) error {
		archive := filepath.Join(artifactDir, fmt.Sprintf("ruby-%s.tgz", desired.Version))
		f, err := os.Open(archive)
		if err != nil {
			if os.IsNotExist(err) {
				return issue.NewErrorContext().
					WithOperation("install ruby").
					WithResource(archive).
					WithSuggestion("Prefetch the runtime archive into the artifact directory").
					WithIssue(issue.RuntimeArtifactNotFoundId).
					Wrap(err).
					Build()
			}
			return fmt.Errorf("open runtime archive: %w", err)
		}
		defer f.Close()

		if err := untarGz(ctx, f, dir); err != nil {
			return issue.NewErrorContext().
				WithOperation("install ruby").
				WithResource(archive).
				WithSuggestion("Re-fetch the archive; it may be truncated or corrupt").
				WithIssue(issue.RubyInstallFailedId).
				Wrap(err).
				Build()
		}
		return nil
	}
}

// BundlerInstaller installs the resolved bundler version into the layer
// with `gem install`. The ruby layer must already be on PATH.
func BundlerInstaller(runner Runner) layer.InstallerFunc[BundlerMetadata] {
	return func(ctx context.Context, desired BundlerMetadata, dir string) error {
		err := runner.Run(ctx, "", nil, "gem",
			"install", "bundler",
			"--version", desired.Version,
			"--install-dir", dir,
			"--bindir", filepath.Join(dir, "bin"),
			"--force",
			"--no-document",
			"--env-shebang",
		)
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("install bundler").
				WithResource(desired.Version).
				WithSuggestion("Check the BUNDLED WITH version in Gemfile.lock").
				WithIssue(issue.BundlerInstallFailedId).
				Wrap(err).
				Build()
		}
		return nil
	}
}

// GemsInstaller runs `bundle install` in the application directory. Bundler
// reads its configuration (install path, gemfile, excluded groups) from the
// BUNDLE_* variables already contributed to the process environment.
func GemsInstaller(runner Runner, appDir string) layer.InstallerFunc[GemsMetadata] {
	return func(ctx context.Context, _ GemsMetadata, _ string) error {
		if err := runner.Run(ctx, appDir, nil, "bundle", "install"); err != nil {
			return issue.NewErrorContext().
				WithOperation("install gems").
				WithResource(filepath.Join(appDir, "Gemfile")).
				WithSuggestion("Read the gem's own error output above; native extensions fail first").
				WithIssue(issue.BundleInstallFailedId).
				Wrap(err).
				Build()
		}
		return nil
	}
}

// untarGz unpacks a gzipped tarball into dir, rejecting entries that would
// escape it.
func untarGz(ctx context.Context, r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("read gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		target, err := secureJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if _, err := secureJoin(dir, filepath.Join(filepath.Dir(hdr.Name), hdr.Linkname)); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// Hard links, devices, and the rest have no business in a
			// runtime archive.
			return fmt.Errorf("extract %s: unsupported entry type %d", hdr.Name, hdr.Typeflag)
		}
	}
}

// secureJoin resolves name under dir and rejects path traversal.
func secureJoin(dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("extract %s: path escapes layer directory", name)
	}
	return target, nil
}
