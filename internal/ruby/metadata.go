// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"rubypack/internal/migrate"
)

// ForceBundleInstallKey is a failsafe cache key for the gems layer: revving
// it invalidates every cached gem install in the wild, forcing a clean
// `bundle install` on the next build.
const ForceBundleInstallKey = "v1"

type (
	// RuntimeMetadataV1 is the ruby layer fingerprint written by releases
	// that identified the OS by legacy stack name.
	RuntimeMetadataV1 struct {
		Stack   string `toml:"stack"`
		Version string `toml:"version"`
	}

	// RuntimeMetadata is the current ruby layer fingerprint. A compiled
	// Ruby is only valid for the exact distribution and architecture it
	// was built on, so every field invalidates.
	RuntimeMetadata struct {
		DistroName      string `toml:"distro_name" cache:"distro_name"`
		DistroVersion   string `toml:"distro_version" cache:"distro_version"`
		CPUArchitecture string `toml:"cpu_architecture" cache:"cpu_architecture"`
		Version         string `toml:"version" cache:"version"`
	}

	// BundlerMetadata is the bundler layer fingerprint.
	BundlerMetadata struct {
		Version string `toml:"version" cache:"version"`
	}

	// GemsMetadataV1 is the gems layer fingerprint from stack-name releases.
	GemsMetadataV1 struct {
		Stack                 string `toml:"stack"`
		RubyVersion           string `toml:"ruby_version"`
		ForceBundleInstallKey string `toml:"force_bundle_install_key"`
		Digest                string `toml:"digest"`
	}

	// GemsMetadataV2 split the stack name into distribution fields.
	GemsMetadataV2 struct {
		DistroName            string `toml:"distro_name"`
		DistroVersion         string `toml:"distro_version"`
		CPUArchitecture       string `toml:"cpu_architecture"`
		RubyVersion           string `toml:"ruby_version"`
		ForceBundleInstallKey string `toml:"force_bundle_install_key"`
		Digest                string `toml:"digest"`
	}

	// GemsMetadata is the current gems layer fingerprint. Native gem
	// extensions bind to the OS, architecture, and Ruby version; the digest
	// tracks the inputs of `bundle install` itself.
	GemsMetadata struct {
		OSDistribution        string `toml:"os_distribution" cache:"os_distribution"`
		CPUArchitecture       string `toml:"cpu_architecture" cache:"cpu_architecture"`
		RubyVersion           string `toml:"ruby_version" cache:"ruby_version"`
		ForceBundleInstallKey string `toml:"force_bundle_install_key" cache:"force_bundle_install_key"`
		Digest                string `toml:"digest" cache:"digest"`
	}

	// SecretKeyBaseMetadata persists the generated SECRET_KEY_BASE so an
	// application's sessions survive rebuilds. It has no cache-relevant
	// fields: once generated, the stored value is reused as-is.
	SecretKeyBaseMetadata struct {
		SecretKeyBase string `toml:"secret_key_base"`
	}
)

// RuntimeChain resolves ruby layer metadata of any vintage. The v1 edge can
// fail: a stack name with no target mapping invalidates the cache.
var RuntimeChain = migrate.NewChain[RuntimeMetadata](
	migrate.Older[RuntimeMetadataV1, RuntimeMetadata]("v1", runtimeV1ToV2),
	migrate.Current[RuntimeMetadata]("v2"),
)

// BundlerChain resolves bundler layer metadata.
var BundlerChain = migrate.NewChain[BundlerMetadata](
	migrate.Current[BundlerMetadata]("v1"),
)

// GemsChain resolves gems layer metadata of any vintage.
var GemsChain = migrate.NewChain[GemsMetadata](
	migrate.Older[GemsMetadataV1, GemsMetadataV2]("v1", gemsV1ToV2),
	migrate.Older[GemsMetadataV2, GemsMetadata]("v2", gemsV2ToV3),
	migrate.Current[GemsMetadata]("v3"),
)

// SecretKeyBaseChain resolves secret-key-base layer metadata.
var SecretKeyBaseChain = migrate.NewChain[SecretKeyBaseMetadata](
	migrate.Current[SecretKeyBaseMetadata]("v1"),
)

// NewRuntimeMetadata builds the desired ruby layer fingerprint.
func NewRuntimeMetadata(target Target, version string) RuntimeMetadata {
	return RuntimeMetadata{
		DistroName:      target.DistroName,
		DistroVersion:   target.DistroVersion,
		CPUArchitecture: target.CPUArchitecture,
		Version:         version,
	}
}

// NewGemsMetadata builds the desired gems layer fingerprint.
func NewGemsMetadata(target Target, rubyVersion, digest string) GemsMetadata {
	return GemsMetadata{
		OSDistribution:        target.OSDistribution(),
		CPUArchitecture:       target.CPUArchitecture,
		RubyVersion:           rubyVersion,
		ForceBundleInstallKey: ForceBundleInstallKey,
		Digest:                digest,
	}
}

func runtimeV1ToV2(v1 RuntimeMetadataV1) (RuntimeMetadata, error) {
	target, err := TargetFromStack(v1.Stack)
	if err != nil {
		return RuntimeMetadata{}, err
	}
	return NewRuntimeMetadata(target, v1.Version), nil
}

func gemsV1ToV2(v1 GemsMetadataV1) (GemsMetadataV2, error) {
	target, err := TargetFromStack(v1.Stack)
	if err != nil {
		return GemsMetadataV2{}, err
	}
	return GemsMetadataV2{
		DistroName:            target.DistroName,
		DistroVersion:         target.DistroVersion,
		CPUArchitecture:       target.CPUArchitecture,
		RubyVersion:           v1.RubyVersion,
		ForceBundleInstallKey: v1.ForceBundleInstallKey,
		Digest:                v1.Digest,
	}, nil
}

func gemsV2ToV3(v2 GemsMetadataV2) (GemsMetadata, error) {
	return GemsMetadata{
		OSDistribution:        v2.DistroName + " " + v2.DistroVersion,
		CPUArchitecture:       v2.CPUArchitecture,
		RubyVersion:           v2.RubyVersion,
		ForceBundleInstallKey: v2.ForceBundleInstallKey,
		Digest:                v2.Digest,
	}, nil
}
