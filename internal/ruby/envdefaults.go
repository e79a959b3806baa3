// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"crypto/rand"
	"fmt"
)

// EnvDefault is one static environment default contributed before any
// installer runs; applications may override every one of them.
type EnvDefault struct {
	Key   string
	Value string
}

// EnvDefaults lists the static defaults in contribution order. They must be
// in place before `bundle install`: some Gemfiles run code that expects
// these variables.
var EnvDefaults = []EnvDefault{
	// JRuby-only tuning, ignored by MRI.
	{"JRUBY_OPTS", "-Xcompile.invokedynamic=false"},
	{"RACK_ENV", "production"},
	{"RAILS_ENV", "production"},
	// Rails 5+ serves public/ files and logs to stdout when these are set.
	{"RAILS_SERVE_STATIC_FILES", "enabled"},
	{"RAILS_LOG_TO_STDOUT", "enabled"},
	// Caps glibc malloc arenas; trades a little allocation speed under
	// many threads for a lower memory ceiling.
	{"MALLOC_ARENA_MAX", "2"},
	{"DISABLE_SPRING", "1"},
}

const secretKeyBaseLength = 64

const alphanumerics = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSecretKeyBase produces a random alphanumeric secret for
// SECRET_KEY_BASE. Generated once and persisted in layer metadata so user
// sessions survive rebuilds.
func GenerateSecretKeyBase() (string, error) {
	buf := make([]byte, secretKeyBaseLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret key base: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphanumerics[int(b)%len(alphanumerics)]
	}
	return string(buf), nil
}
