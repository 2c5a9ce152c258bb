package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for UC Remote Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Remote    RemoteConfig    `yaml:"remote"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Session   SessionConfig   `yaml:"session"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// RemoteConfig identifies the hub and how to authenticate against it.
type RemoteConfig struct {
	// URL is the hub address. A bare host is accepted and normalised
	// to http://host/api/ by the transport.
	URL string `yaml:"url"`

	// APIKey is a previously exchanged API key. Prefer the
	// UCREMOTE_REMOTE_APIKEY environment variable.
	APIKey string `yaml:"api_key"`

	// PIN is the web-configurator PIN, only needed to create or revoke keys.
	PIN string `yaml:"pin"`

	// KeyLabel is the name used when registering a new API key.
	// Default: "ucremote"
	KeyLabel string `yaml:"key_label"`

	// MACAddress is used for Wake-on-LAN when the hub is asleep and no
	// snapshot is available yet.
	MACAddress string `yaml:"mac_address"`

	// RequestTimeout bounds every individual HTTP request.
	// Default: 5s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DiscoveryConfig contains mDNS discovery settings.
type DiscoveryConfig struct {
	// Service is the DNS-SD service type browsed for hubs.
	Service string `yaml:"service"`

	// Domain is the browse domain. Default: "local."
	Domain string `yaml:"domain"`

	// Timeout is the default collection window. Default: 3s
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig contains device session settings.
type SessionConfig struct {
	// RefreshInterval is the period of the background refresher.
	// Default: 30s
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// FetchConcurrency bounds parallel requests during a full load.
	// Default: 4
	FetchConcurrency int `yaml:"fetch_concurrency"`

	// TransitionGrace is how long a hub report of an activity's previous
	// state is ignored after a start/stop was accepted.
	// Default: 15s
	TransitionGrace time.Duration `yaml:"transition_grace"`
}

// DispatchConfig contains command retry and pacing settings.
type DispatchConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`

	// RepeatDelay is the minimum spacing between repeated sends.
	// Default: 250ms
	RepeatDelay time.Duration `yaml:"repeat_delay"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings for the local API.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: UCREMOTE_SECTION_KEY
// For example: UCREMOTE_REMOTE_URL, UCREMOTE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is not validated.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			KeyLabel:       "ucremote",
			RequestTimeout: 5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Service: "_uc-remote._tcp",
			Domain:  "local.",
			Timeout: 3 * time.Second,
		},
		Session: SessionConfig{
			RefreshInterval:  30 * time.Second,
			FetchConcurrency: 4,
			TransitionGrace:  15 * time.Second,
		},
		Dispatch: DispatchConfig{
			MaxAttempts:    4,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2,
			RepeatDelay:    250 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:        "./data/ucremote.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ucremote-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: UCREMOTE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Remote
	if v := os.Getenv("UCREMOTE_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("UCREMOTE_REMOTE_APIKEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("UCREMOTE_REMOTE_PIN"); v != "" {
		cfg.Remote.PIN = v
	}
	if v := os.Getenv("UCREMOTE_REMOTE_MAC"); v != "" {
		cfg.Remote.MACAddress = v
	}

	// Session
	if v := os.Getenv("UCREMOTE_SESSION_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.RefreshInterval = d
		}
	}

	// Database
	if v := os.Getenv("UCREMOTE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("UCREMOTE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("UCREMOTE_MQTT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = p
		}
	}
	if v := os.Getenv("UCREMOTE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("UCREMOTE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("UCREMOTE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("UCREMOTE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("UCREMOTE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Remote.RequestTimeout <= 0 {
		errs = append(errs, "remote.request_timeout must be positive")
	}

	if c.Discovery.Timeout <= 0 {
		errs = append(errs, "discovery.timeout must be positive")
	}
	if c.Discovery.Service == "" {
		errs = append(errs, "discovery.service is required")
	}

	if c.Session.RefreshInterval <= 0 {
		errs = append(errs, "session.refresh_interval must be positive")
	}
	if c.Session.FetchConcurrency < 1 {
		errs = append(errs, "session.fetch_concurrency must be at least 1")
	}
	if c.Session.TransitionGrace < 0 {
		errs = append(errs, "session.transition_grace must not be negative")
	}

	if c.Dispatch.MaxAttempts < 1 {
		errs = append(errs, "dispatch.max_attempts must be at least 1")
	}
	if c.Dispatch.Multiplier < 1 {
		errs = append(errs, "dispatch.multiplier must be at least 1")
	}
	if c.Dispatch.MaxBackoff < c.Dispatch.InitialBackoff {
		errs = append(errs, "dispatch.max_backoff must not be less than dispatch.initial_backoff")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The local API can start activities and power the hub off, so a
	// guessable signing secret is not acceptable once it is exposed.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when api is enabled (set UCREMOTE_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
