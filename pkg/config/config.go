package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fbremote/fbremote/internal/bytesize"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of a fbremote listener process.
//
// This structure captures the static configuration of the Remote Protocol
// Engine: which transports it listens on, which auth plugins it offers,
// whether wire compression is negotiable, logging, and metrics.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FBREMOTE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Listener configures the transports the server accepts connections on
	Listener ListenerConfig `mapstructure:"listener" yaml:"listener"`

	// Auth configures the pluggable authentication sub-protocol
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Compression configures the wire compression filter
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ListenerConfig configures the transports the engine accepts connections on,
// one per spec.md transport kind (inet, inet4, inet6, xnet, wnet).
type ListenerConfig struct {
	// Transport selects the wire transport: inet, inet4, inet6, xnet, wnet.
	// inet resolves to whichever family the bind address supports; inet4/inet6
	// force a single family; xnet and wnet are recognized for protocol parity
	// with the original engine but are not implemented over TCP and are
	// rejected at validation time.
	Transport string `mapstructure:"transport" validate:"required,oneof=inet inet4 inet6 xnet wnet" yaml:"transport"`

	// BindAddress is the address the listener binds to, e.g. "0.0.0.0" or "::".
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// Port is the TCP port to listen on.
	// Default: 3050 (the traditional gds_db port)
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// DualStack allows an inet6 listener to also accept IPv4 connections
	// (clears IPV6_V6ONLY on the listening socket).
	DualStack bool `mapstructure:"dual_stack" yaml:"dual_stack"`

	// MaxConnections caps the number of simultaneously open ports.
	// Default: 0 (unlimited)
	MaxConnections int `mapstructure:"max_connections" validate:"omitempty,gt=0" yaml:"max_connections"`

	// NoDelay sets TCP_NODELAY on accepted connections, disabling Nagle's
	// algorithm so small packets (e.g. lazy-response batches) are not delayed.
	// Default: true
	NoDelay bool `mapstructure:"no_delay" yaml:"no_delay"`

	// KeepAlive is the interval between TCP keepalive probes.
	// Default: 30s
	KeepAlive time.Duration `mapstructure:"keep_alive" validate:"omitempty,gt=0" yaml:"keep_alive"`

	// DummyPacketInterval is how often a dummy packet is sent on an otherwise
	// idle connection to detect a dead peer ahead of the OS keepalive timer.
	// Default: 0 (disabled)
	DummyPacketInterval time.Duration `mapstructure:"dummy_packet_interval" validate:"omitempty,gt=0" yaml:"dummy_packet_interval"`

	// ShutdownTimeout is the maximum time to wait for in-flight ports to
	// drain during a graceful shutdown of the listener itself.
	ShutdownTimeout time.Duration `mapstructure:"listener_shutdown_timeout" validate:"omitempty,gt=0" yaml:"listener_shutdown_timeout"`
}

// AuthConfig configures the pluggable Auth Sub-protocol.
type AuthConfig struct {
	// PluginOrder lists the auth plugins offered to the client, in the order
	// advertised in the cnct_plugins option; the client picks one.
	// Valid entries: Srp256, Srp, Legacy_Auth, Kerberos
	// Default: ["Srp256", "Srp", "Legacy_Auth"]
	PluginOrder []string `mapstructure:"plugin_order" validate:"required,min=1,dive,oneof=Srp256 Srp Legacy_Auth Kerberos" yaml:"plugin_order"`

	// WireCrypt controls whether a negotiated crypt key enables wire
	// encryption once authentication completes.
	// Default: true
	WireCrypt bool `mapstructure:"wire_crypt" yaml:"wire_crypt"`

	// Kerberos contains Kerberos/GSSAPI authentication configuration.
	Kerberos KerberosConfig `mapstructure:"kerberos" yaml:"kerberos"`
}

// KerberosConfig contains Kerberos/GSSAPI auth-plugin configuration.
//
// When Enabled is true, the Kerberos plugin is added to the offered plugin
// list and clients may authenticate with a service ticket instead of an SRP
// or legacy exchange.
type KerberosConfig struct {
	// Enabled controls whether the Kerberos plugin is offered.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// KeytabPath is the path to the keytab containing the service principal's key.
	KeytabPath string `mapstructure:"keytab_path" yaml:"keytab_path"`

	// ServicePrincipal is the Kerberos service principal name (SPN), e.g.
	// "fbremote/server.example.com@EXAMPLE.COM".
	ServicePrincipal string `mapstructure:"service_principal" yaml:"service_principal"`

	// Krb5Conf is the path to the Kerberos configuration file.
	// Default: /etc/krb5.conf
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf"`

	// MaxClockSkew is the maximum allowed clock difference between client
	// and server during ticket validation.
	// Default: 5m
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew" validate:"omitempty,gt=0" yaml:"max_clock_skew"`
}

// CompressionConfig configures the wire Compression Filter.
type CompressionConfig struct {
	// Enabled controls whether compression is advertised in ptype_compressed
	// and negotiated with clients that request it.
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Level is the zstd compression level.
	// Default: 3 (zstd.SpeedDefault)
	Level int `mapstructure:"level" validate:"omitempty,min=1,max=22" yaml:"level"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FBREMOTE_*)
//  2. Configuration file
//  3. Default values
//
// Environment variables override only keys the configuration file sets.
// When no configuration file is found, Load returns GetDefaultConfig()
// and reads no environment variable.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	// ApplyDefaults cannot tell an explicit false from an unset bool, so
	// restore the default-true settings the file or environment set.
	for key, field := range map[string]*bool{
		"listener.no_delay":   &cfg.Listener.NoDelay,
		"auth.wire_crypt":     &cfg.Auth.WireCrypt,
		"compression.enabled": &cfg.Compression.Enabled,
	} {
		if v.IsSet(key) {
			*field = v.GetBool(key)
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate runs struct-tag validation over the configuration and rejects
// transport kinds this engine does not implement.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	switch cfg.Listener.Transport {
	case "xnet", "wnet":
		return fmt.Errorf("listener transport %q is not implemented over TCP", cfg.Listener.Transport)
	}

	if cfg.Auth.Kerberos.Enabled {
		for _, p := range cfg.Auth.PluginOrder {
			if p == "Kerberos" {
				return nil
			}
		}
		return fmt.Errorf("auth.kerberos.enabled is true but \"Kerberos\" is not in auth.plugin_order")
	}

	return nil
}

// SaveConfig saves the configuration to the specified file path.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use FBREMOTE_ prefix and underscores
	// Example: FBREMOTE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FBREMOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings and numbers to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fbremote")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "fbremote")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
