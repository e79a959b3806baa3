// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rubypack/internal/issue"
)

// fakeRunner records invocations instead of executing them.
type fakeRunner struct {
	calls [][]string
	dirs  []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, dir string, _ []string, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	f.dirs = append(f.dirs, dir)
	return f.err
}

func writeRubyArchive(t *testing.T, dir, version string) string {
	t.Helper()
	path := filepath.Join(dir, "ruby-"+version+".tgz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{Name: "bin/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	body := []byte("#!/bin/sh\necho ruby\n")
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
	return path
}

func TestRuntimeInstaller_UnpacksArchive(t *testing.T) {
	t.Parallel()

	artifacts := t.TempDir()
	writeRubyArchive(t, artifacts, "3.2.1")
	layerDir := t.TempDir()

	install := RuntimeInstaller(artifacts)
	err := install(context.Background(), RuntimeMetadata{Version: "3.2.1"}, layerDir)
	if err != nil {
		t.Fatalf("install error = %v", err)
	}

	info, err := os.Stat(filepath.Join(layerDir, "bin", "ruby"))
	if err != nil {
		t.Fatalf("bin/ruby missing after unpack: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Error("bin/ruby is not executable")
	}
}

func TestRuntimeInstaller_MissingArchive(t *testing.T) {
	t.Parallel()

	install := RuntimeInstaller(t.TempDir())
	err := install(context.Background(), RuntimeMetadata{Version: "3.2.1"}, t.TempDir())
	if err == nil {
		t.Fatal("install succeeded without an archive")
	}
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) || actionable.IssueId != issue.RuntimeArtifactNotFoundId {
		t.Errorf("error = %v, want RuntimeArtifactNotFoundId", err)
	}
}

func TestRuntimeInstaller_RejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	artifacts := t.TempDir()
	path := filepath.Join(artifacts, "ruby-3.2.1.tgz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	body := []byte("pwned")
	if err := tw.WriteHeader(&tar.Header{Name: "../escape", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}); err != nil {
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
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	install := RuntimeInstaller(artifacts)
	if err := install(context.Background(), RuntimeMetadata{Version: "3.2.1"}, t.TempDir()); err == nil {
		t.Fatal("install accepted a path-traversal entry")
	}
}

func TestBundlerInstaller_CommandShape(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	install := BundlerInstaller(runner)
	layerDir := t.TempDir()

	if err := install(context.Background(), BundlerMetadata{Version: "2.4.10"}, layerDir); err != nil {
		t.Fatalf("install error = %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(runner.calls))
	}
	got := strings.Join(runner.calls[0], " ")
	for _, fragment := range []string{
		"gem install bundler",
		"--version 2.4.10",
		"--install-dir " + layerDir,
		"--bindir " + filepath.Join(layerDir, "bin"),
		"--force",
		"--no-document",
		"--env-shebang",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("command %q missing %q", got, fragment)
		}
	}
}

func TestBundlerInstaller_Failure(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")
	install := BundlerInstaller(&fakeRunner{err: cause})
	err := install(context.Background(), BundlerMetadata{Version: "2.4.10"}, t.TempDir())
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped runner failure", err)
	}
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) || actionable.IssueId != issue.BundlerInstallFailedId {
		t.Errorf("error = %v, want BundlerInstallFailedId", err)
	}
}

func TestGemsInstaller_RunsInAppDir(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	install := GemsInstaller(runner, "/workspace/app")

	if err := install(context.Background(), GemsMetadata{}, t.TempDir()); err != nil {
		t.Fatalf("install error = %v", err)
	}
	if len(runner.calls) != 1 || strings.Join(runner.calls[0], " ") != "bundle install" {
		t.Fatalf("runner calls = %v, want a single bundle install", runner.calls)
	}
	if runner.dirs[0] != "/workspace/app" {
		t.Errorf("command dir = %q, want the app dir", runner.dirs[0])
	}
}
