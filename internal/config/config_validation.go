// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net"
)

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or an error wrapping one of the
// ErrInvalid* sentinels otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.Status.DSN == "" {
		return fmt.Errorf("%w: empty status dsn", ErrInvalidStorageConfigs)
	}

	if cfg.Sync.Concurrency < 1 || cfg.Sync.BatchSize < 1 || cfg.Sync.PairParallelism < 1 {
		return fmt.Errorf("%w: concurrency, batch size and pair parallelism must be positive", ErrInvalidSyncConfigs)
	}
	if cfg.Sync.Interval <= 0 || cfg.Sync.WatchDebounce < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidSyncConfigs)
	}
	if !validPolicy(cfg.Sync.ConflictPolicy) {
		return fmt.Errorf("%w: unknown conflict policy %q", ErrInvalidSyncConfigs, cfg.Sync.ConflictPolicy)
	}

	if cfg.Server.HTTPAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.HTTPAddress); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidServerConfigs, err)
		}
	}

	seen := make(map[string]struct{}, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		if p.Name == "" {
			return fmt.Errorf("%w: pair without name", ErrInvalidPairConfigs)
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("%w: duplicate pair %q", ErrInvalidPairConfigs, p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.ConflictPolicy != "" && !validPolicy(p.ConflictPolicy) {
			return fmt.Errorf("%w: pair %q: unknown conflict policy %q", ErrInvalidPairConfigs, p.Name, p.ConflictPolicy)
		}
		if err := p.A.validate(); err != nil {
			return fmt.Errorf("%w: pair %q side a: %w", ErrInvalidPairConfigs, p.Name, err)
		}
		if err := p.B.validate(); err != nil {
			return fmt.Errorf("%w: pair %q side b: %w", ErrInvalidPairConfigs, p.Name, err)
		}
	}

	return nil
}

func (def StorageDefinition) validate() error {
	switch def.Type {
	case StorageFilesystem:
		if def.Path == "" {
			return fmt.Errorf("filesystem storage requires path")
		}
	case StorageCalDAV, StorageCardDAV:
		if def.URL == "" {
			return fmt.Errorf("%s storage requires url", def.Type)
		}
	default:
		return fmt.Errorf("unknown storage type %q", def.Type)
	}
	return nil
}

func validPolicy(policy string) bool {
	switch policy {
	case PolicyDefer, PolicyPreferA, PolicyPreferB:
		return true
	}
	return false
}

// SelectPairs returns the pair named name, or every configured pair when
// name is empty.
func (cfg *StructuredConfig) SelectPairs(name string) ([]Pair, error) {
	if len(cfg.Pairs) == 0 {
		return nil, ErrNoPairs
	}
	if name == "" {
		return cfg.Pairs, nil
	}

	for _, p := range cfg.Pairs {
		if p.Name == name {
			return []Pair{p}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPair, name)
}
