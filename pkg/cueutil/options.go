// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize is the default maximum file size for schema-checked
// input (1MB). Configuration files larger than this are rejected before
// decoding.
const DefaultMaxFileSize int64 = 1 * 1024 * 1024

type (
	// validateOptions holds configuration for schema validation.
	validateOptions struct {
		concrete bool
		filename string
	}

	// Option configures validation behavior.
	Option func(*validateOptions)
)

// defaultOptions returns the default validation options.
func defaultOptions() validateOptions {
	return validateOptions{
		concrete: true,
		filename: "",
	}
}

// WithConcrete sets whether all values must be concrete after unification.
// Default is true.
//
// Set to false for config files where fields are optional and unset
// values are acceptable.
func WithConcrete(concrete bool) Option {
	return func(o *validateOptions) {
		o.concrete = concrete
	}
}

// WithFilename sets the filename used in error messages, so users can
// locate the offending file.
func WithFilename(name string) Option {
	return func(o *validateOptions) {
		o.filename = name
	}
}
