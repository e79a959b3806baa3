// SPDX-License-Identifier: MPL-2.0

// Package migrate resolves layer metadata blobs of unknown vintage into the
// current schema version.
//
// Each metadata type declares a closed, ordered chain of schema versions with
// typed conversion functions between neighbors:
//
//	var chain = migrate.NewChain[MetadataV2](
//		migrate.Older("v1", func(old MetadataV1) (MetadataV2, error) { ... }),
//		migrate.Current[MetadataV2]("v2"),
//	)
//
// Resolution probes from the newest version down to the oldest for a schema
// that deserializes the blob, then walks the conversion functions forward to
// the current version. Decoding is strict in both directions: a blob with an
// unknown field or a missing field does not match a schema. Probing newest
// first matters because the blob does not self-identify its version, and a
// newer schema that merely adds a field must not deserialize under an older,
// structurally compatible one.
//
// A blob no version can decode, or a conversion function that fails, is a
// migration failure; callers treat it the same as an absent cache.
package migrate
