// SPDX-License-Identifier: MPL-2.0

// Package layer decides, for each named layer, whether the previous build's
// installed contents can be reused or must be recreated.
//
// A Controller runs one layer through the cache cycle: load the stored
// metadata, resolve it through the schema migration chain, diff it against
// the freshly computed desired record, and act on the verdict. The three
// recreate causes carry operator-facing reasons:
//
//   - "newly created" — no stored metadata existed
//   - "invalid metadata: …" — the blob matched no schema or a migration failed
//   - "version: 3.2.1 -> 3.3.0, …" — cache-relevant fields changed
//
// Recreating clears the layer directory, invokes the installer collaborator,
// and only then writes the new metadata; an installer failure leaves the
// layer empty and the metadata unwritten, so the next build retries instead
// of trusting a half-built layer. Cache-level problems (absent, corrupt, or
// unmigratable metadata) never fail the build; store I/O errors and installer
// failures do.
package layer
