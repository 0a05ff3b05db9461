// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// short suggestions. Errors may also link to the issue catalog, whose entries
// hold Markdown guidance rendered with glamour when the CLI reports a failure.
package issue
