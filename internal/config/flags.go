package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Flag names registered by [RegisterFlags].
const (
	flagConfig          = "config"
	flagStatusDSN       = "status-dsn"
	flagConcurrency     = "concurrency"
	flagBatchSize       = "batch-size"
	flagPairParallelism = "pair-parallelism"
	flagConflictPolicy  = "conflict-policy"
	flagInterval        = "interval"
	flagWatch           = "watch"
	flagAddress         = "address"
	flagLogFile         = "log-file"
	flagLogLevel        = "log-level"
)

// NetAddress holds structured network address data for host and port.
// It implements the pflag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// RegisterFlags defines the configuration flags on fs. Zero defaults are
// used on purpose: only flags the user actually sets override other
// sources.
//
// Flags:
//
//	-c/--config          config file path (.json, .yaml, .yml, .toml)
//	--status-dsn         status store DSN
//	--concurrency        item operations in flight per pair
//	--batch-size         status changes per commit
//	--pair-parallelism   pairs synchronized at once
//	--conflict-policy    defer, prefer_a or prefer_b
//	--interval           daemon sync interval (e.g. "5m")
//	--watch              run pairs on filesystem changes
//	-a/--address         daemon HTTP API address host:port
//	--log-file           daemon log file
//	--log-level          log level
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(flagConfig, "c", "", "Config file path (.json, .yaml, .yml or .toml)")
	fs.String(flagStatusDSN, "", "Status store DSN (SQLite path, .json file, :memory: or postgres:// URL)")
	fs.Int(flagConcurrency, 0, "Item operations in flight per pair")
	fs.Int(flagBatchSize, 0, "Status changes committed per transaction")
	fs.Int(flagPairParallelism, 0, "Pairs synchronized at once")
	fs.String(flagConflictPolicy, "", "Default conflict policy: defer, prefer_a or prefer_b")
	fs.Duration(flagInterval, 0, "Daemon sync interval (e.g. 5m)")
	fs.Bool(flagWatch, false, "Run a pair when one of its filesystem collections changes")
	fs.VarP(&NetAddress{}, flagAddress, "a", "Daemon HTTP API address host:port")
	fs.String(flagLogFile, "", "Daemon log file")
	fs.String(flagLogLevel, "", "Log level (debug, info, warn, error)")
}

// parseFlags reads the flags registered by RegisterFlags from an already
// parsed fs.
func parseFlags(fs *pflag.FlagSet) (*StructuredConfig, error) {
	var errs []error
	str := func(name string) string {
		v, err := fs.GetString(name)
		errs = append(errs, err)
		return v
	}
	num := func(name string) int {
		v, err := fs.GetInt(name)
		errs = append(errs, err)
		return v
	}

	cfg := &StructuredConfig{
		App: App{
			LogFile:  str(flagLogFile),
			LogLevel: str(flagLogLevel),
		},
		Storage: Storage{
			Status: Status{DSN: str(flagStatusDSN)},
		},
		Sync: Sync{
			Concurrency:     num(flagConcurrency),
			BatchSize:       num(flagBatchSize),
			PairParallelism: num(flagPairParallelism),
			ConflictPolicy:  str(flagConflictPolicy),
		},
		ConfigFilePath: str(flagConfig),
	}

	interval, err := fs.GetDuration(flagInterval)
	errs = append(errs, err)
	cfg.Sync.Interval = interval

	watch, err := fs.GetBool(flagWatch)
	errs = append(errs, err)
	cfg.Sync.Watch = watch

	if f := fs.Lookup(flagAddress); f != nil {
		cfg.Server.HTTPAddress = f.Value.String()
	}

	if err = errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("error reading flags: %w", err)
	}
	return cfg, nil
}

// String returns a canonical host:port string for a NetAddress, or an empty
// string when nothing is set.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Type implements pflag.Value.
func (a *NetAddress) Type() string {
	return "host:port"
}

// Set parses the input string of form host:port and populates the NetAddress.
// An empty host means all interfaces. It validates the port range, checks IP
// correctness unless host is "localhost", and returns an error if the format
// or values are invalid.
func (a *NetAddress) Set(s string) error {
	host, portStr, found := strings.Cut(s, ":")
	if !found || strings.Contains(portStr, ":") {
		return errors.New("need address in a form `host:port`")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return errors.New("port number must be between 1 and 65535")
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
