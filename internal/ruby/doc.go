// SPDX-License-Identifier: MPL-2.0

// Package ruby supplies the concrete Ruby-specific facts and installers
// that the generic layer cache engine orchestrates.
//
// It knows how to read version pins out of a Gemfile.lock, identify the
// build target (distribution, version, CPU architecture) including the
// legacy stack-name mapping, declare the metadata schemas and migration
// chains for the ruby, bundler, and gems layers, fingerprint the inputs
// of `bundle install`, and populate layer directories: unpacking a
// prefetched Ruby archive, installing bundler with `gem install`, and
// installing dependencies with `bundle install`.
package ruby
