// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates rubypack configuration.
//
// Configuration comes from three sources, later ones overriding earlier:
// built-in defaults, an optional rubypack.toml file, and RUBYPACK_*
// environment variables. The file contents are validated against an
// embedded CUE schema before they are accepted, so schema violations are
// reported with the offending field's path instead of surfacing later as
// misbehavior deep in a build.
package config
