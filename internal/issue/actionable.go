// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is an error with context for user-facing error messages.
	// It records what operation failed, which resource was involved, how the
	// user can fix it, and optionally which catalog entry explains it.
	//
	// Use the ErrorContext builder for convenient construction:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("resolve conda environment").
	//		WithResource("cadgen").
	//		WithSuggestion("Install Miniconda or add its path to candidate_paths").
	//		WithIssue(issue.EnvironmentNotFoundId).
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation describes what was being attempted (e.g., "launch application").
		Operation string

		// Resource identifies the file, path, or entity involved (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// IssueID points at the catalog entry with long-form guidance (optional).
		IssueID Id

		// Cause is the underlying error that triggered this error (optional).
		Cause error
	}

	// ErrorContext is a builder for constructing ActionableError instances.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		issueID     Id
		cause       error
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithOperation wraps an error with operation context.
func WrapWithOperation(err error, operation string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{
		Operation: operation,
		Cause:     err,
	}
}

// Error implements the error interface.
// Returns a concise error message suitable for default (non-verbose) output.
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

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format returns a formatted error message with optional verbosity.
//
// When verbose is false:
//
//	failed to <operation>: <resource>: <cause message>
//	  • <suggestion 1>
//	  • <suggestion 2>
//
// When verbose is true, additionally includes the full error chain.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder

	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}

// HasSuggestions returns true if the error has any suggestions.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// WithOperation sets the operation being performed.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the resource (file, path, entity) involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion adds a suggestion for how to fix the issue.
// Can be called multiple times to add multiple suggestions.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions adds multiple suggestions at once.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// WithIssue links the error to a catalog entry.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issueID = id
	return c
}

// Wrap wraps an underlying error as the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build creates an ActionableError from the context.
// Returns nil if no operation is set (operation is required).
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		IssueID:     c.issueID,
		Cause:       c.cause,
	}
}

// BuildError creates an ActionableError and returns it as an error interface.
// Returns nil if no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
