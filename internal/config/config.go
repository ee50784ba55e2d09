// Package config implements the configuration layer of spec §6.2/§6.4:
// a TOML file loaded through viper, exposed through a dot-path accessor
// with typed wrappers, plus a reload entry point for SIGUSR2.
//
// Grounded on the teacher's internal/config (viper.SetConfigFile /
// SetDefault / ReadInConfig / Unmarshal, env-var binding with a
// per-application prefix) adapted from the teacher's global viper
// package functions to an explicit *viper.Viper instance so reload
// doesn't race a concurrently read global.
package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// AppSection is the well-known "app" subsection of spec §6.2.
type AppSection struct {
	Name          string `mapstructure:"name"`
	WorkerThreads int    `mapstructure:"worker_threads"`
	Daemonize     bool   `mapstructure:"daemonize"`
	PIDFile       string `mapstructure:"pid_file"`
}

// LoggingSection is the well-known "logging" subsection of spec §6.2.
type LoggingSection struct {
	Level      string   `mapstructure:"level"`
	Components []string `mapstructure:"components"`
}

// NetworkSection is the well-known "network" subsection of spec §6.2,
// controlling the operator shell's optional TCP listener (spec §4.H).
type NetworkSection struct {
	ShellAddress string `mapstructure:"shell_address"`
	ShellEnabled bool   `mapstructure:"shell_enabled"`
}

// Config is the top-level configuration document of spec §6.2.
type Config struct {
	App     AppSection     `mapstructure:"app"`
	Logging LoggingSection `mapstructure:"logging"`
	Network NetworkSection `mapstructure:"network"`
}

// Store owns a live *viper.Viper instance and the last successfully
// unmarshaled Config, guarded so Reload can run concurrently with
// readers on another thread (spec §4.F's SIGUSR2 handler runs on the
// main reactor, but Get/typed accessors may be called from any thread).
type Store struct {
	mu  sync.RWMutex
	v   *viper.Viper
	cfg Config
	path string
}

func defaults(v *viper.Viper) {
	v.SetDefault("app.name", "substrate")
	v.SetDefault("app.worker_threads", 2)
	v.SetDefault("app.daemonize", false)
	v.SetDefault("app.pid_file", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.components", []string{})
	v.SetDefault("network.shell_enabled", false)
	v.SetDefault("network.shell_address", "127.0.0.1:9999")
}

// Load reads and parses the TOML file at path, applying defaults for
// anything the file omits. An empty path is valid: the Store then
// carries only defaults, matching spec §6.2's "config file is
// optional" note.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigType("toml")
	defaults(v)
	v.SetEnvPrefix("SUBSTRATE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &Store{v: v, cfg: cfg, path: path}, nil
}

// Reload re-reads the configuration file from disk and atomically
// replaces the Store's view, per spec §4.F's SIGUSR2 handling. A
// reload of a path-less Store is a no-op that leaves defaults in
// place.
func (s *Store) Reload() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()
	if path == "" {
		return nil
	}

	fresh, err := Load(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.v = fresh.v
	s.cfg = fresh.cfg
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the currently loaded configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// String returns the dot-path value key as a string, or "" if absent.
func (s *Store) String(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(key)
}

// Int64 returns the dot-path value key as an int64, or 0 if absent.
func (s *Store) Int64(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt64(key)
}

// Float64 returns the dot-path value key as a float64, or 0 if absent.
func (s *Store) Float64(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetFloat64(key)
}

// Bool returns the dot-path value key as a bool, or false if absent.
func (s *Store) Bool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(key)
}

// IsSet reports whether key has an explicit value (file, env, or
// default).
func (s *Store) IsSet(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.IsSet(key)
}
