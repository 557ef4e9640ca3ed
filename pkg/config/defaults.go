package config

import (
	"strings"
	"time"
)

// GetDefaultConfig returns a Config populated entirely with default values,
// used when no configuration file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults. Zero values (0, "", false, nil) are replaced with defaults;
// explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyListenerDefaults(&cfg.Listener)
	applyAuthDefaults(&cfg.Auth)
	applyCompressionDefaults(&cfg.Compression)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyListenerDefaults(cfg *ListenerConfig) {
	if cfg.Transport == "" {
		cfg.Transport = "inet"
	}

	if cfg.BindAddress == "" {
		cfg.BindAddress = "0.0.0.0"
	}

	if cfg.Port == 0 {
		cfg.Port = 3050
	}

	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30 * time.Second
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	// NoDelay defaults to true; only an explicit "false" in the source
	// config can turn it off, which ApplyDefaults cannot distinguish from
	// the zero value, so the CLI/file layer is expected to set it
	// explicitly when disabling.
	if !cfg.NoDelay {
		cfg.NoDelay = true
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if len(cfg.PluginOrder) == 0 {
		cfg.PluginOrder = []string{"Srp256", "Srp", "Legacy_Auth"}
	}

	if !cfg.WireCrypt {
		cfg.WireCrypt = true
	}

	if cfg.Kerberos.Krb5Conf == "" {
		cfg.Kerberos.Krb5Conf = "/etc/krb5.conf"
	}

	if cfg.Kerberos.MaxClockSkew == 0 {
		cfg.Kerberos.MaxClockSkew = 5 * time.Minute
	}
}

func applyCompressionDefaults(cfg *CompressionConfig) {
	if !cfg.Enabled {
		cfg.Enabled = true
	}

	if cfg.Level == 0 {
		cfg.Level = 3
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
