// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"rubypack/internal/issue"
)

// ErrNotExist reports that a layer has no stored manifest.
var ErrNotExist = errors.New("layer metadata does not exist")

// CorruptError reports a manifest that exists but cannot be parsed. Callers
// treat it as an invalid cache, not a fatal condition.
type CorruptError struct {
	// Path is the manifest file that failed to parse.
	Path string
	// Err is the underlying parse error.
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("unparseable layer metadata at %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Flags are the three independent layer capabilities recorded in the
// manifest's [types] table.
type Flags struct {
	// Build exposes the layer's environment to the remainder of this build.
	Build bool `toml:"build"`
	// Cache persists the layer's contents and metadata to the next build.
	Cache bool `toml:"cache"`
	// Launch exposes the layer's environment to the running application.
	Launch bool `toml:"launch"`
}

// Store reads and writes layer manifests under a single root directory. The
// root differs by build protocol (the layers directory for the layered
// interface, a cache directory inside the app root for the legacy one); the
// store itself is protocol-agnostic.
type Store struct {
	root string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// LayerDir returns the content directory owned by the named layer.
func (s *Store) LayerDir(name string) string {
	return filepath.Join(s.root, name)
}

// ManifestPath returns the manifest file path for the named layer.
func (s *Store) ManifestPath(name string) string {
	return filepath.Join(s.root, name+".toml")
}

type manifest struct {
	Types    Flags          `toml:"types"`
	Metadata map[string]any `toml:"metadata"`
}

// Load returns the raw metadata table stored for the named layer, serialized
// as TOML. It returns ErrNotExist when no manifest is present, a
// *CorruptError when the manifest cannot be parsed, and a wrapped I/O error
// otherwise.
func (s *Store) Load(name string) ([]byte, error) {
	path := s.ManifestPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("layer %s: %w", name, ErrNotExist)
		}
		return nil, ioError("read layer metadata", path, err)
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	raw, err := toml.Marshal(m.Metadata)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return raw, nil
}

// Save writes the manifest for the named layer, replacing any prior record
// regardless of its vintage. Last writer wins; there is no merge. metadata
// must marshal to a flat TOML table.
func (s *Store) Save(name string, metadata any, flags Flags) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return ioError("create store root", s.root, err)
	}

	raw, err := toml.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("serialize metadata for layer %s: %w", name, err)
	}
	var table map[string]any
	if err := toml.Unmarshal(raw, &table); err != nil {
		return fmt.Errorf("serialize metadata for layer %s: %w", name, err)
	}

	out, err := toml.Marshal(manifest{Types: flags, Metadata: table})
	if err != nil {
		return fmt.Errorf("serialize manifest for layer %s: %w", name, err)
	}
	path := s.ManifestPath(name)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return ioError("write layer metadata", path, err)
	}
	return nil
}

// ioError marks filesystem failures as fatal, user-actionable conditions.
// Cache-level outcomes (absent, corrupt) keep their dedicated types; only
// real I/O problems reach the issue registry.
func ioError(op, path string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(path).
		WithSuggestion("Check free disk space and permissions on the layers directory").
		WithIssue(issue.MetadataStoreIOId).
		Wrap(err).
		Build()
}
