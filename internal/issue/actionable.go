// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
)

// ActionableError is an error with context for user-facing messages: what
// operation failed, what resource was involved, and how to fix it.
//
// Use the ErrorContext builder for construction:
//
//	err := issue.NewErrorContext().
//		WithOperation("install ruby").
//		WithResource("ruby-3.2.1.tgz").
//		WithSuggestion("Check the artifact directory").
//		Wrap(originalErr).
//		Build()
type ActionableError struct {
	// Operation describes what was being attempted (e.g., "install ruby").
	Operation string

	// Resource identifies the file, path, or entity involved (optional).
	Resource string

	// Suggestions provides hints on how to fix the issue (optional).
	Suggestions []string

	// IssueId links the error to registered remediation text (optional).
	IssueId Id

	// Cause is the underlying error (optional).
	Cause error
}

// ErrorContext is a fluent builder for ActionableError values.
type ErrorContext struct {
	err ActionableError
}

// NewErrorContext creates an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

func (c *ErrorContext) WithResource(resource string) *ErrorContext {
	c.err.Resource = resource
	return c
}

func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, s)
	return c
}

func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.IssueId = id
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// Build returns the assembled error.
func (c *ErrorContext) Build() *ActionableError {
	e := c.err
	return &e
}

// Error returns a concise single-line message for non-verbose output.
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *ActionableError) Unwrap() error { return e.Cause }

// Detail returns a multi-line message including suggestions, for verbose
// output or final failure reports.
func (e *ActionableError) Detail() string {
	var msg strings.Builder
	msg.WriteString(e.Error())
	for _, s := range e.Suggestions {
		msg.WriteString("\n  - ")
		msg.WriteString(s)
	}
	return msg.String()
}
