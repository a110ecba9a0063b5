package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "OUTQUEUE_"

// ApplyEnvConfig applies OUTQUEUE_* environment variables to cfg. Values
// for flags in changed are left alone.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("collector", env("COLLECTOR"), &cfg.Collector)
	s.setString("function-name", env("FUNCTION_NAME"), &cfg.FunctionName)
	s.setString("namespace", env("NAMESPACE"), &cfg.Namespace)
	s.setString("api-key", env("API_KEY"), &cfg.APIKey)
	s.setString("host-scheme", env("HOST_SCHEME"), &cfg.HostScheme)
	s.setString("store", env("STORE"), &cfg.Store)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("redis-url", env("REDIS_URL"), &cfg.RedisURL)
	s.setString("redis-prefix", env("REDIS_PREFIX"), &cfg.RedisPrefix)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("spool-dir", env("SPOOL_DIR"), &cfg.SpoolDir)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setIntFromString("buffer-size", env("BUFFER_SIZE"), &cfg.BufferSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-post-bytes", env("MAX_POST_BYTES"), &cfg.MaxPostBytes); err != nil {
		return err
	}

	if err := s.setDuration("request-timeout", env("REQUEST_TIMEOUT"), &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("page-unload-timer", env("PAGE_UNLOAD_TIMER"), &cfg.PageUnloadTimer); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", env("FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}

	s.setBoolFromString("use-local-storage", env("USE_LOCAL_STORAGE"), &cfg.UseLocalStorage)
	s.setBoolFromString("secure-credentials", env("SECURE_CREDENTIALS"), &cfg.SecureCredentials)
	s.setBoolFromString("force-secure", env("FORCE_SECURE"), &cfg.ForceSecure)
	s.setBoolFromString("force-insecure", env("FORCE_INSECURE"), &cfg.ForceInsecure)
	s.setBoolFromString("compression", env("COMPRESSION"), &cfg.Compression)

	return nil
}
