package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of the configuration, shared by the JSON,
// YAML and TOML formats.
type fileConfig struct {
	App struct {
		LogFile  string `json:"log_file" yaml:"log_file" toml:"log_file"`
		LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	} `json:"app" yaml:"app" toml:"app"`

	Storage struct {
		Status struct {
			DSN string `json:"dsn" yaml:"dsn" toml:"dsn"`
		} `json:"status" yaml:"status" toml:"status"`
	} `json:"storage" yaml:"storage" toml:"storage"`

	Sync struct {
		Concurrency     int      `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
		BatchSize       int      `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
		PairParallelism int      `json:"pair_parallelism" yaml:"pair_parallelism" toml:"pair_parallelism"`
		ConflictPolicy  string   `json:"conflict_policy" yaml:"conflict_policy" toml:"conflict_policy"`
		Interval        Duration `json:"interval" yaml:"interval" toml:"interval"`
		Watch           bool     `json:"watch" yaml:"watch" toml:"watch"`
		WatchDebounce   Duration `json:"watch_debounce" yaml:"watch_debounce" toml:"watch_debounce"`
	} `json:"sync" yaml:"sync" toml:"sync"`

	Server struct {
		HTTPAddress string `json:"http_address" yaml:"http_address" toml:"http_address"`
	} `json:"server" yaml:"server" toml:"server"`

	Pairs []filePair `json:"pairs" yaml:"pairs" toml:"pairs"`
}

type filePair struct {
	Name           string      `json:"name" yaml:"name" toml:"name"`
	A              fileStorage `json:"a" yaml:"a" toml:"a"`
	B              fileStorage `json:"b" yaml:"b" toml:"b"`
	ConflictPolicy string      `json:"conflict_policy" yaml:"conflict_policy" toml:"conflict_policy"`
}

type fileStorage struct {
	Type           string   `json:"type" yaml:"type" toml:"type"`
	Path           string   `json:"path" yaml:"path" toml:"path"`
	Extension      string   `json:"extension" yaml:"extension" toml:"extension"`
	URL            string   `json:"url" yaml:"url" toml:"url"`
	Username       string   `json:"username" yaml:"username" toml:"username"`
	Password       string   `json:"password" yaml:"password" toml:"password"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	ReadOnly       bool     `json:"read_only" yaml:"read_only" toml:"read_only"`
}

// parseFile decodes the config file at path, choosing the format by its
// extension.
func parseFile(path string) (*StructuredConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		_, err = toml.Decode(string(data), &fc)
	default:
		return nil, fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfigFile, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error decoding %s: %w", ErrInvalidConfigFile, path, err)
	}

	return fc.toStructured(), nil
}

func (fc *fileConfig) toStructured() *StructuredConfig {
	cfg := &StructuredConfig{
		App: App{
			LogFile:  fc.App.LogFile,
			LogLevel: fc.App.LogLevel,
		},
		Storage: Storage{
			Status: Status{DSN: fc.Storage.Status.DSN},
		},
		Sync: Sync{
			Concurrency:     fc.Sync.Concurrency,
			BatchSize:       fc.Sync.BatchSize,
			PairParallelism: fc.Sync.PairParallelism,
			ConflictPolicy:  fc.Sync.ConflictPolicy,
			Interval:        time.Duration(fc.Sync.Interval),
			Watch:           fc.Sync.Watch,
			WatchDebounce:   time.Duration(fc.Sync.WatchDebounce),
		},
		Server: Server{
			HTTPAddress: fc.Server.HTTPAddress,
		},
	}

	for _, p := range fc.Pairs {
		cfg.Pairs = append(cfg.Pairs, Pair{
			Name:           p.Name,
			A:              p.A.toDefinition(),
			B:              p.B.toDefinition(),
			ConflictPolicy: p.ConflictPolicy,
		})
	}

	return cfg
}

func (fs fileStorage) toDefinition() StorageDefinition {
	return StorageDefinition{
		Type:           fs.Type,
		Path:           fs.Path,
		Extension:      fs.Extension,
		URL:            fs.URL,
		Username:       fs.Username,
		Password:       fs.Password,
		RequestTimeout: time.Duration(fs.RequestTimeout),
		ReadOnly:       fs.ReadOnly,
	}
}

// Duration is a time.Duration that decodes from strings like "1h" or "30s"
// in JSON, YAML and TOML, and from plain numbers as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		return d.UnmarshalText([]byte(value))
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler (used by TOML).
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}

	tmp, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(tmp)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
