// SPDX-License-Identifier: MPL-2.0

// Package cachediff compares a freshly computed layer metadata record against
// the record stored by a previous build and reports the fields that differ.
//
// Fields opt in to cache invalidation with a `cache` struct tag; the tag value
// is the human-readable field label used in build output:
//
//	type Metadata struct {
//		Version  string `toml:"version" cache:"version"`
//		BuiltAt  string `toml:"built_at"`            // informational only
//	}
//
// An empty result is the sole "cache still valid" signal. A non-empty result
// doubles as the operator-facing explanation for why the cache was cleared.
package cachediff
