package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// and YAML friendly.
type FileConfig struct {
	Collector         string `toml:"collector" yaml:"collector"`
	FunctionName      string `toml:"function_name" yaml:"function_name"`
	Namespace         string `toml:"namespace" yaml:"namespace"`
	BufferSize        int    `toml:"buffer_size" yaml:"buffer_size"`
	MaxPostBytes      int    `toml:"max_post_bytes" yaml:"max_post_bytes"`
	UseLocalStorage   *bool  `toml:"use_local_storage" yaml:"use_local_storage"`
	SecureCredentials *bool  `toml:"secure_credentials" yaml:"secure_credentials"`
	APIKey            string `toml:"api_key" yaml:"api_key"`
	ForceSecure       *bool  `toml:"force_secure" yaml:"force_secure"`
	ForceInsecure     *bool  `toml:"force_insecure" yaml:"force_insecure"`
	HostScheme        string `toml:"host_scheme" yaml:"host_scheme"`
	Compression       *bool  `toml:"compression" yaml:"compression"`
	RequestTimeout    string `toml:"request_timeout" yaml:"request_timeout"`
	PageUnloadTimer   string `toml:"page_unload_timer" yaml:"page_unload_timer"`
	FlushInterval     string `toml:"flush_interval" yaml:"flush_interval"`
	Store             string `toml:"store" yaml:"store"`
	StateDir          string `toml:"state_dir" yaml:"state_dir"`
	RedisURL          string `toml:"redis_url" yaml:"redis_url"`
	RedisPrefix       string `toml:"redis_prefix" yaml:"redis_prefix"`
	MetricsAddr       string `toml:"metrics_addr" yaml:"metrics_addr"`
	SpoolDir          string `toml:"spool_dir" yaml:"spool_dir"`
	LogLevel          string `toml:"log_level" yaml:"log_level"`
	LogFormat         string `toml:"log_format" yaml:"log_format"`
}

// LoadFileConfig reads and parses a config file from the given path.
// Files ending in .yaml or .yml are parsed as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.outqueue/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".outqueue", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("collector", fc.Collector, &cfg.Collector)
	s.setString("function-name", fc.FunctionName, &cfg.FunctionName)
	s.setString("namespace", fc.Namespace, &cfg.Namespace)
	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("host-scheme", fc.HostScheme, &cfg.HostScheme)
	s.setString("store", fc.Store, &cfg.Store)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)
	s.setString("redis-prefix", fc.RedisPrefix, &cfg.RedisPrefix)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("spool-dir", fc.SpoolDir, &cfg.SpoolDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	s.setInt("buffer-size", fc.BufferSize, &cfg.BufferSize)
	s.setInt("max-post-bytes", fc.MaxPostBytes, &cfg.MaxPostBytes)

	if err := s.setDuration("request-timeout", fc.RequestTimeout, &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("page-unload-timer", fc.PageUnloadTimer, &cfg.PageUnloadTimer); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}

	s.setBool("use-local-storage", fc.UseLocalStorage, &cfg.UseLocalStorage)
	s.setBool("secure-credentials", fc.SecureCredentials, &cfg.SecureCredentials)
	s.setBool("force-secure", fc.ForceSecure, &cfg.ForceSecure)
	s.setBool("force-insecure", fc.ForceInsecure, &cfg.ForceInsecure)
	s.setBool("compression", fc.Compression, &cfg.Compression)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
