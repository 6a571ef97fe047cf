// SPDX-License-Identifier: MPL-2.0

// Package config handles slnpack configuration using Viper with CUE as the file format.
//
// A configuration file is looked up in this order: the file given with --config
// (used exclusively), slnpack.cue in the project directory, then config.cue in the
// user configuration directory (~/.config/slnpack on Linux, ~/Library/Application
// Support/slnpack on macOS, %APPDATA%\slnpack on Windows). Without any file the
// defaults apply. Every scalar setting can be overridden with an SLNPACK_ prefixed
// environment variable, e.g. SLNPACK_REGISTRY_S3_SECRET_KEY.
//
// Files are validated against the embedded CUE schema (config_schema.cue).
package config
