// SPDX-License-Identifier: MPL-2.0

// Package envreg tracks the environment variables a build contributes to,
// which layer contributed what, and how multiple contributions to the same
// variable combine.
//
// A Registry is constructed once per build and passed explicitly to every
// layer; there is no package-level state. Each variable is registered exactly
// once with a merge strategy:
//
//   - Override: the single contributed value wins outright.
//   - Default: like Override, but the live process environment is only
//     touched when the user did not already supply a value.
//   - Prepend: contributions are path lists; layers compose by concatenation
//     with the most recent contributor first.
//
// Contributions are applied to the live process environment immediately so
// later layers in the same build observe them (a dependency-manager install
// needs the runtime's bin directory on PATH). Two layers contributing
// different values to an Override or Default variable is a buildpack
// programming error and fails before any environment mutation.
//
// At the end of the build the registry renders an export plan — a flat list
// of (layer, key, strategy, values) tuples — that the export backends
// serialize into the legacy and layered physical formats.
package envreg
