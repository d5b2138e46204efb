// Package cmd implements the kvdb command-line interface. It opens a
// database with the configured backend and runs a single record operation
// against it.
//
// The package is organized into subpackages:
//
//   - record: Commands for record operations (insert, get, scan, perf, etc.)
//   - util: Shared utilities for flags and configuration (internal use)
package cmd
