// SPDX-License-Identifier: MPL-2.0

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"rubypack/internal/envreg"
	"rubypack/internal/store"
)

const (
	// EnvBuildDir receives variables exported to the remainder of the build.
	EnvBuildDir = "env.build"
	// EnvLaunchDir receives variables exported to the running application.
	EnvLaunchDir = "env.launch"
)

// LayerInfo names a layer and its capability flags for the layered backend's
// manifest output.
type LayerInfo struct {
	Name  string
	Flags store.Flags
}

// WriteLayered renders the export plan into per-layer directory trees under
// layersRoot: one file per variable in each contributing layer's env.build
// and env.launch directories (mirrored identically), named by key plus a
// strategy suffix. It also guarantees every declared layer has a manifest
// carrying its capability flags; manifests the durable store already wrote
// (with metadata) are left untouched.
func WriteLayered(plan []envreg.Contribution, layers []LayerInfo, layersRoot string) error {
	for key, content := range mergeByLayer(plan) {
		layerDir := filepath.Join(layersRoot, key.layer)
		for _, envDir := range []string{EnvBuildDir, EnvLaunchDir} {
			dir := filepath.Join(layerDir, envDir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create env dir %s: %w", dir, err)
			}
			path := filepath.Join(dir, key.fileName)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("write env file %s: %w", path, err)
			}
		}
	}

	for _, layer := range layers {
		if err := ensureManifest(layersRoot, layer); err != nil {
			return err
		}
	}
	return nil
}

type envFileKey struct {
	layer    string
	fileName string
}

// mergeByLayer folds the chronological plan into one file body per layer and
// variable. Later prepend contributions from the same layer land in front,
// matching the effective in-process ordering.
func mergeByLayer(plan []envreg.Contribution) map[envFileKey]string {
	files := make(map[envFileKey]string)
	for _, c := range plan {
		key := envFileKey{layer: c.Layer, fileName: c.Key + c.Strategy.FileSuffix()}
		joined := strings.Join(c.Values, ":")
		if existing, ok := files[key]; ok && c.Strategy == envreg.Prepend {
			files[key] = joined + ":" + existing
			continue
		}
		files[key] = joined
	}
	return files
}

func ensureManifest(layersRoot string, layer LayerInfo) error {
	path := filepath.Join(layersRoot, layer.Name+".toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat layer manifest %s: %w", path, err)
	}

	out, err := toml.Marshal(struct {
		Types store.Flags `toml:"types"`
	}{Types: layer.Flags})
	if err != nil {
		return fmt.Errorf("serialize manifest for layer %s: %w", layer.Name, err)
	}
	if err := os.MkdirAll(layersRoot, 0o755); err != nil {
		return fmt.Errorf("create layers root %s: %w", layersRoot, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write layer manifest %s: %w", path, err)
	}
	return nil
}
