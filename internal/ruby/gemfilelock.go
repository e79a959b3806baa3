// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"fmt"
	"os"
	"regexp"

	"rubypack/internal/issue"
)

// SourceDefault is reported by Source when a version came from
// configuration rather than the lockfile.
const SourceDefault = "default"

// SourceGemfileLock is reported by Source for a version pinned in the
// lockfile itself.
const SourceGemfileLock = "Gemfile.lock"

var (
	bundledWithRe = regexp.MustCompile(`BUNDLED WITH\s+(\d+\.\d+\.\d+)`)
	rubyVersionRe = regexp.MustCompile(`RUBY VERSION\s+ruby (\d+\.\d+\.\d+((-|\.)\S*\d+)?)`)
	jrubyRe       = regexp.MustCompile(`\(jruby ((\d+|\.)+)\)`)
)

type (
	// PinnedVersion is a version that is either pinned explicitly in the
	// lockfile or left to a configured default.
	PinnedVersion struct {
		value    string
		explicit bool
	}

	// GemfileLock holds the version pins read from an application's
	// Gemfile.lock. Both pins may be absent: old Bundler releases wrote
	// neither section, and a Gemfile without a `ruby` directive writes no
	// RUBY VERSION.
	GemfileLock struct {
		RubyVersion    PinnedVersion
		BundlerVersion PinnedVersion
	}
)

// Resolve returns the pinned version, or def when the lockfile pinned none.
func (p PinnedVersion) Resolve(def string) string {
	if p.explicit {
		return p.value
	}
	return def
}

// Source names where the resolved version came from, for build output.
func (p PinnedVersion) Source() string {
	if p.explicit {
		return SourceGemfileLock
	}
	return SourceDefault
}

// ParseGemfileLock extracts version pins from Gemfile.lock contents. Parsing
// never fails: missing sections yield default pins. A JRuby line such as
// `ruby 2.5.7p001 (jruby 9.2.13.0)` pins "2.5.7-jruby-9.2.13.0"; the MRI
// patch suffix (p001) is never part of the pin.
func ParseGemfileLock(contents string) GemfileLock {
	var lock GemfileLock

	if m := bundledWithRe.FindStringSubmatch(contents); m != nil {
		lock.BundlerVersion = PinnedVersion{value: m[1], explicit: true}
	}
	if m := rubyVersionRe.FindStringSubmatch(contents); m != nil {
		version := m[1]
		if jm := jrubyRe.FindStringSubmatch(contents); jm != nil {
			version = fmt.Sprintf("%s-jruby-%s", version, jm[1])
		}
		lock.RubyVersion = PinnedVersion{value: version, explicit: true}
	}
	return lock
}

// ReadGemfileLock parses the Gemfile.lock at path. A missing file is an
// error: a deployable Ruby app must commit its lockfile.
func ReadGemfileLock(path string) (GemfileLock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GemfileLock{}, issue.NewErrorContext().
				WithOperation("read Gemfile.lock").
				WithResource(path).
				WithSuggestion("Run `bundle install` locally and commit the resulting Gemfile.lock").
				WithIssue(issue.GemfileLockNotFoundId).
				Wrap(err).
				Build()
		}
		return GemfileLock{}, issue.NewErrorContext().
			WithOperation("read Gemfile.lock").
			WithResource(path).
			WithIssue(issue.GemfileLockParseErrorId).
			Wrap(err).
			Build()
	}
	return ParseGemfileLock(string(data)), nil
}
