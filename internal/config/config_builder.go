package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/spf13/pflag"
)

type configBuilder struct {
	// configs are ordered from lowest to highest priority.
	configs []*StructuredConfig
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*StructuredConfig, 0, 3),
	}
}

func (b *configBuilder) build() (*StructuredConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}

	config := new(StructuredConfig)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &StructuredConfig{}
	if err := parseEnv(envCfg); err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withFlags(fs *pflag.FlagSet) *configBuilder {
	if fs == nil {
		return b
	}

	flagCfg, err := parseFlags(fs)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append(b.configs, flagCfg)
	return b
}

// withFile loads the config file named by any earlier source and puts it
// first, so that env and flags override it.
func (b *configBuilder) withFile() *configBuilder {
	var path string
	for _, cfg := range b.configs {
		if cfg.ConfigFilePath != "" {
			path = cfg.ConfigFilePath
		}
	}
	if path == "" {
		return b
	}

	fileCfg, err := parseFile(path)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append([]*StructuredConfig{fileCfg}, b.configs...)
	return b
}

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.Storage.Status.DSN == "" {
		cfg.Storage.Status.DSN = DefaultStatusDSN
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = DefaultConcurrency
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = DefaultBatchSize
	}
	if cfg.Sync.PairParallelism == 0 {
		cfg.Sync.PairParallelism = DefaultPairParallelism
	}
	if cfg.Sync.ConflictPolicy == "" {
		cfg.Sync.ConflictPolicy = PolicyDefer
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = DefaultInterval
	}
	if cfg.Sync.WatchDebounce == 0 {
		cfg.Sync.WatchDebounce = DefaultWatchDebounce
	}

	for i := range cfg.Pairs {
		for _, def := range []*StorageDefinition{&cfg.Pairs[i].A, &cfg.Pairs[i].B} {
			if def.Type != StorageFilesystem && def.RequestTimeout == 0 {
				def.RequestTimeout = DefaultRequestTimeout
			}
		}
	}
}
