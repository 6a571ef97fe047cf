// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by the slnpack tests: building
// source trees on disk (WriteTree), reading archives back (ReadZip, ZipNames)
// and a manually advanced clock for timestamped records (FakeClock).
package testutil
