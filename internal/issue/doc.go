// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. The issue catalog holds Markdown guidance for the fatal
// launcher failures (environment not found, activation, launch, image build),
// rendered for the terminal with glamour.
package issue
