// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown guides
// shown to users when packaging fails.
//
// ActionableError carries the operation, the resource involved and hints on
// how to fix the problem. Issue entries are longer Markdown documents rendered
// with glamour and looked up by Id.
package issue
