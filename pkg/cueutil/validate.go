// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ValidateValue checks an already-decoded Go value (a config map, a struct)
// against a schema definition:
//
//  1. Compile the embedded schema
//  2. Encode the Go value and unify with the schema definition
//  3. Validate the unified result
//
// schemaPath is the path to the root definition (e.g., "#Config").
// Errors carry the CUE path of the offending field, formatted by
// FormatError.
func ValidateValue(schema []byte, schemaPath string, value any, opts ...Option) error {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	filename := options.filename
	if filename == "" {
		filename = "<input>"
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	encoded := ctx.Encode(value)
	if encoded.Err() != nil {
		return FormatError(encoded.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(encoded)

	if err := unified.Validate(cue.Concrete(options.concrete)); err != nil {
		return FormatError(err, filename)
	}

	return nil
}
