// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Storage types accepted in [StorageDefinition.Type].
const (
	StorageFilesystem = "filesystem"
	StorageCalDAV     = "caldav"
	StorageCardDAV    = "carddav"
)

// Conflict policy names accepted in [Sync.ConflictPolicy] and
// [Pair.ConflictPolicy].
const (
	PolicyDefer   = "defer"
	PolicyPreferA = "prefer_a"
	PolicyPreferB = "prefer_b"
)

// Defaults applied to zero values after all sources are merged.
const (
	DefaultStatusDSN       = "pimsync-status.db"
	DefaultConcurrency     = 4
	DefaultBatchSize       = 1
	DefaultPairParallelism = 2
	DefaultInterval        = 5 * time.Minute
	DefaultWatchDebounce   = 2 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
)

// StructuredConfig is the top-level configuration container for pimsync.
// It aggregates all sub-configurations and is populated by merging values
// from a config file, environment variables and command-line flags.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds logging settings.
	App App `envPrefix:"APP_"`

	// Storage holds the status store settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds the engine tuning knobs and the default conflict policy.
	Sync Sync `envPrefix:"SYNC_"`

	// Server holds the daemon HTTP API settings.
	Server Server `envPrefix:"SERVER_"`

	// Pairs lists the collections to keep in sync. Pairs can only be
	// defined in the config file.
	Pairs []Pair

	// ConfigFilePath is the optional path to a JSON, YAML or TOML
	// configuration file. Populated via the CONFIG environment variable or
	// the -c / --config flag.
	ConfigFilePath string `env:"CONFIG"`
}

// App holds application-level settings.
type App struct {
	// LogFile is the path of the rotating log file used by the daemon.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`

	// LogLevel is a zerolog level name ("debug", "info", ...).
	// Env: APP_LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL"`
}

// Storage groups the persistence settings.
type Storage struct {
	// Status holds the status store connection settings.
	Status Status `envPrefix:"STATUS_"`
}

// Status holds the status store connection settings.
type Status struct {
	// DSN selects the status backend: a postgres:// URL, a path ending in
	// .json for the JSON file store, ":memory:" for an in-memory store, or
	// any other path for SQLite.
	// Env: STORAGE_STATUS_DSN
	DSN string `env:"DSN"`
}

// Sync holds engine settings shared by all pairs.
type Sync struct {
	// Concurrency bounds the number of item operations in flight per pair.
	// Env: SYNC_CONCURRENCY
	Concurrency int `env:"CONCURRENCY"`

	// BatchSize is the number of status changes committed per transaction.
	// Env: SYNC_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`

	// PairParallelism bounds the number of pairs synchronized at once.
	// Env: SYNC_PAIR_PARALLELISM
	PairParallelism int `env:"PAIR_PARALLELISM"`

	// ConflictPolicy is the default policy for pairs without their own.
	// Env: SYNC_CONFLICT_POLICY
	ConflictPolicy string `env:"CONFLICT_POLICY"`

	// Interval is how often the daemon runs every pair.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// Watch makes the daemon run a pair as soon as one of its filesystem
	// collections changes.
	// Env: SYNC_WATCH
	Watch bool `env:"WATCH"`

	// WatchDebounce is how long the watcher waits for a burst of file
	// events to settle before triggering a run.
	// Env: SYNC_WATCH_DEBOUNCE
	WatchDebounce time.Duration `env:"WATCH_DEBOUNCE"`
}

// Server holds network settings for the daemon HTTP API.
type Server struct {
	// HTTPAddress is the TCP address of the status API and /metrics, in
	// "host:port" format. Empty disables the API.
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`
}

// Pair describes two collections kept in sync.
type Pair struct {
	// Name identifies the pair in the status store, logs and the API.
	Name string

	A StorageDefinition
	B StorageDefinition

	// ConflictPolicy overrides [Sync.ConflictPolicy] for this pair.
	ConflictPolicy string
}

// Policy returns the pair's conflict policy or fallback when unset.
func (p Pair) Policy(fallback string) string {
	if p.ConflictPolicy != "" {
		return p.ConflictPolicy
	}
	return fallback
}

// StorageDefinition describes one side of a pair.
type StorageDefinition struct {
	// Type is one of StorageFilesystem, StorageCalDAV or StorageCardDAV.
	Type string

	// Path is the collection directory of a filesystem storage.
	Path string

	// Extension is the item file extension (".ics" or ".vcf").
	Extension string

	// URL is the collection URL of a CalDAV/CardDAV storage.
	URL string

	Username string
	Password string

	// RequestTimeout bounds every HTTP request of a DAV storage.
	RequestTimeout time.Duration

	// ReadOnly makes the engine never write to this side.
	ReadOnly bool
}

// GetStructuredConfig loads, merges, and validates the configuration from
// all available sources in the following priority order (later sources
// override non-zero fields of earlier ones):
//  1. Config file (path resolved from sources 2 and 3)
//  2. Environment variables
//  3. Command-line flags registered with [RegisterFlags] on fs
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig(fs *pflag.FlagSet) (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(fs).
		withFile().
		build()
}
