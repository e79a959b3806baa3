// SPDX-License-Identifier: MPL-2.0

// Package build orchestrates a full buildpack run.
//
// Layers are processed strictly in order — env defaults, secret key base,
// ruby, bundler, gems — because later layers depend on earlier ones'
// environment contributions: `bundle install` needs ruby and bundler on
// PATH and the BUNDLE_* configuration already in the live environment.
// Each layer goes through the generic cache controller; once every layer
// has run, the accumulated environment plan is flushed to disk exactly
// once, in the format the active build protocol consumes.
package build
