// SPDX-License-Identifier: MPL-2.0

// Package issue maps build failures to user-facing remediation guidance.
//
// A buildpack's audience is application developers, not buildpack authors:
// when a build fails, the raw error alone rarely tells them what to do next.
// Each failure class has a registered Issue with a markdown remediation text
// and documentation links, rendered to the terminal with glamour.
//
// The package also provides ActionableError, a structured error carrying the
// failed operation, the resource involved, and concrete suggestions; the CLI
// layer renders it alongside the matching Issue.
package issue
