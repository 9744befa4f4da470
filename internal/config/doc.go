// Package config provides configuration loading, merging, and validation
// facilities for pimsync.
//
// Configuration is assembled from multiple sources in the following priority
// order (later sources override earlier non-zero fields):
//  1. Config file (JSON, YAML or TOML, chosen by extension)
//  2. Environment variables
//  3. Command-line flags
//
// Pairs can only be declared in the config file. The main entry point is
// [GetStructuredConfig].
package config
