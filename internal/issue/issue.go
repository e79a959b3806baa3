// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
)

// Id identifies a class of build failure with registered remediation text.
type Id int

const (
	GemfileLockNotFoundId Id = iota + 1
	GemfileLockParseErrorId
	RubyInstallFailedId
	BundlerInstallFailedId
	BundleInstallFailedId
	RuntimeArtifactNotFoundId
	MetadataStoreIOId
	EnvContributionConflictId
	ConfigLoadFailedId
)

// MarkdownMsg is remediation text in markdown, rendered before display.
type MarkdownMsg string

// HttpLink is a documentation URL shown under "See also".
type HttpLink string

// Issue bundles the remediation content registered for one failure class.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink
}

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render returns the issue's remediation text rendered for the terminal.
func (i *Issue) Render() (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md)
}

// render is a test seam over glamour.
var render = func(md string) (string, error) {
	return glamour.Render(md, "auto")
}

var registry = map[Id]*Issue{
	GemfileLockNotFoundId: {
		id: GemfileLockNotFoundId,
		mdMsg: `
# No Gemfile.lock found

A Ruby app must be deployed with a committed ` + "`Gemfile.lock`" + `.

## Things to try
- Run ` + "`bundle install`" + ` locally and commit the resulting ` + "`Gemfile.lock`" + `
- Check that the file is not listed in ` + "`.gitignore`" + `
`,
		docLinks: []HttpLink{"https://bundler.io/guides/rationale.html"},
	},
	GemfileLockParseErrorId: {
		id: GemfileLockParseErrorId,
		mdMsg: `
# Could not parse Gemfile.lock

The committed ` + "`Gemfile.lock`" + ` could not be read.

## Things to try
- Regenerate it with ` + "`bundle lock`" + ` and commit the result
- Look for unresolved merge conflict markers in the file
`,
		docLinks: []HttpLink{"https://bundler.io/man/bundle-lock.1.html"},
	},
	RubyInstallFailedId: {
		id: RubyInstallFailedId,
		mdMsg: `
# Ruby installation failed

The requested Ruby version could not be installed.

## Things to try
- Confirm the version in ` + "`Gemfile.lock`" + ` is a released Ruby version
- Confirm the version is available for your stack's OS and architecture
`,
		docLinks: []HttpLink{"https://www.ruby-lang.org/en/downloads/"},
	},
	BundlerInstallFailedId: {
		id: BundlerInstallFailedId,
		mdMsg: `
# Bundler installation failed

` + "`gem install bundler`" + ` did not complete.

## Things to try
- Check the ` + "`BUNDLED WITH`" + ` version in ` + "`Gemfile.lock`" + `
- Retry the build; rubygems.org may have been briefly unavailable
`,
		docLinks: []HttpLink{"https://bundler.io/"},
	},
	BundleInstallFailedId: {
		id: BundleInstallFailedId,
		mdMsg: `
# bundle install failed

Your application's dependencies could not be installed.

## Things to try
- Read the gem's own error output above; native extensions fail first
- Make sure the build works locally with the same Ruby version
`,
		docLinks: []HttpLink{"https://bundler.io/man/bundle-install.1.html"},
	},
	RuntimeArtifactNotFoundId: {
		id: RuntimeArtifactNotFoundId,
		mdMsg: `
# Runtime artifact not found

No prefetched Ruby archive was found in the artifact directory.

## Things to try
- Check the ` + "`artifact_dir`" + ` setting in your rubypack config
- Prefetch the archive named ` + "`ruby-<version>.tgz`" + ` into that directory
`,
	},
	MetadataStoreIOId: {
		id: MetadataStoreIOId,
		mdMsg: `
# Could not read or write the layer cache

A filesystem error occurred while touching layer metadata.

## Things to try
- Check free disk space and permissions on the layers directory
`,
	},
	EnvContributionConflictId: {
		id: EnvContributionConflictId,
		mdMsg: `
# Conflicting environment configuration

Two layers tried to set the same environment variable to different
values. This is a bug in the buildpack itself, not in your application.

## Things to try
- Report this build's output to the buildpack maintainers
`,
	},
	ConfigLoadFailedId: {
		id: ConfigLoadFailedId,
		mdMsg: `
# Could not load configuration

The rubypack configuration file could not be read or failed validation.

## Things to try
- Validate the file against the documented schema
- Remove the file to fall back to defaults
`,
	},
}

// Lookup returns the Issue registered for id, or nil when no remediation
// text exists for that failure class.
func Lookup(id Id) *Issue {
	return registry[id]
}
