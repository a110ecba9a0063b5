package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/outqueue/pkg/outqueue"
)

// Store backends selectable from the command line.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds CLI configuration for outqueue.
type Config struct {
	Collector    string
	FunctionName string
	Namespace    string

	BufferSize        int
	MaxPostBytes      int
	UseLocalStorage   bool
	SecureCredentials bool
	APIKey            string
	ForceSecure       bool
	ForceInsecure     bool
	HostScheme        string
	Compression       bool

	RequestTimeout  time.Duration
	PageUnloadTimer time.Duration
	FlushInterval   time.Duration

	Store       string
	StateDir    string
	RedisURL    string
	RedisPrefix string

	MetricsAddr string
	SpoolDir    string

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		FunctionName:    outqueue.DefaultFunctionName,
		Namespace:       outqueue.DefaultNamespace,
		BufferSize:      1,
		MaxPostBytes:    outqueue.DefaultMaxPostBytes,
		UseLocalStorage: true,
		HostScheme:      "https",
		RequestTimeout:  outqueue.DefaultRequestTimeout,
		PageUnloadTimer: outqueue.DefaultPageUnloadTimer,
		FlushInterval:   outqueue.DefaultFlushInterval,
		Store:           StoreMemory,
		StateDir:        "", // Derived from the home directory during Validate
		RedisPrefix:     "outqueue:",
		LogLevel:        "info",
		LogFormat:       "console",
		APIKey:          os.Getenv("OUTQUEUE_API_KEY"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer size must be at least 1")
	}
	if c.MaxPostBytes <= 0 {
		return fmt.Errorf("max post bytes must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.PageUnloadTimer < 0 || c.FlushInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}

	switch c.HostScheme {
	case "http", "https":
	default:
		return fmt.Errorf("host scheme must be http or https, got %q", c.HostScheme)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.LogFormat)
	}

	c.Store = strings.ToLower(c.Store)
	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.StateDir == "" {
			c.StateDir = DefaultStateDir()
		}
		if c.StateDir == "" {
			return fmt.Errorf("state-dir is required for the file store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis-url is required for the redis store")
		}
	default:
		return fmt.Errorf("store must be memory, file or redis, got %q", c.Store)
	}

	// Ensure no trailing slash
	c.Collector = strings.TrimRight(c.Collector, "/")

	return nil
}

// DefaultStateDir returns ~/.outqueue/state if the home directory is
// accessible.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".outqueue", "state")
	}
	return ""
}

// QueueConfig converts the CLI configuration to the library configuration.
func (c Config) QueueConfig() outqueue.Config {
	return outqueue.Config{
		Collector:            c.Collector,
		FunctionName:         c.FunctionName,
		Namespace:            c.Namespace,
		BufferSize:           c.BufferSize,
		MaxPostBytes:         c.MaxPostBytes,
		UseLocalStorage:      c.UseLocalStorage,
		SecureCredentials:    c.SecureCredentials,
		APIKey:               c.APIKey,
		RequestTimeout:       c.RequestTimeout,
		PageUnloadTimer:      c.PageUnloadTimer,
		FlushInterval:        c.FlushInterval,
		ForceSecureTracker:   c.ForceSecure,
		ForceUnsecureTracker: c.ForceInsecure,
		HostScheme:           c.HostScheme,
		Compression:          c.Compression,
	}
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.APIKey != "" {
		c.APIKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
