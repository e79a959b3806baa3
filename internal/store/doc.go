// SPDX-License-Identifier: MPL-2.0

// Package store persists layer metadata records and capability flags on disk.
//
// Each named layer owns a content directory `<root>/<name>/` and a manifest
// `<root>/<name>.toml` holding the layer's build/cache/launch flags alongside
// an opaque metadata table:
//
//	[types]
//	build = true
//	cache = true
//	launch = true
//
//	[metadata]
//	version = "3.2.1"
//
// The format is deliberately human-readable so operators can inspect cache
// state by hand. The store is schema-agnostic: Load hands back the raw
// metadata table for the migration chain to interpret, and it distinguishes
// an absent manifest (ErrNotExist) from an unparseable one (*CorruptError)
// from a plain I/O failure, because callers treat the three differently.
package store
