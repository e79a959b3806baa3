// SPDX-License-Identifier: MPL-2.0

// Package export serializes a build's environment contributions into the two
// physical formats the build protocols consume.
//
// The legacy interface passes environment state between build steps through
// sourced POSIX shell scripts: an `export` script consumed by the remainder
// of the build, and a `.profile.d/ruby.sh` script applied when the
// application boots. The layered interface instead uses a filesystem
// convention, one file per variable under each contributing layer's
// `env.build` and `env.launch` directories, read by a separate orchestrating
// process.
//
// Both backends are stateless functions over the same abstract export plan
// produced by envreg.Registry.Plan, which keeps the cache and diff machinery
// ignorant of the output format. Generated scripts are parsed with the
// mvdan.cc/sh syntax parser before anything is written; a malformed script
// is a bug surfaced as an error, never a file on disk.
package export
