// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE schema-validation utilities.
//
// Configuration for rubypack is checked against an embedded CUE schema
// before use. The package consolidates the validation flow:
//
//  1. Compile the embedded schema
//  2. Encode the decoded config value and unify with the schema definition
//  3. Validate the unified result
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schemaBytes []byte
//
//	err := cueutil.ValidateValue(
//	    schemaBytes,
//	    "#Config",
//	    configMap,
//	    cueutil.WithConcrete(false),
//	    cueutil.WithFilename("rubypack.toml"),
//	)
//	if err != nil {
//	    return err // Error includes the CUE path for debugging
//	}
package cueutil
