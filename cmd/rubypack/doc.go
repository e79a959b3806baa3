// SPDX-License-Identifier: MPL-2.0

// Package main contains the rubypack CLI.
//
// The binary exposes the two buildpack entry points: `detect`, which checks
// whether the application is a Ruby app, and `build`, which runs the layer
// sequence and exports the environment for the active build protocol.
package main
