package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when ABODEBRIDGE_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for the Abode bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Abode    AbodeConfig    `yaml:"abode"`
	HomeKit  HomeKitConfig  `yaml:"homekit"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AbodeConfig contains the Abode account and cloud connection settings.
type AbodeConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// BaseURL is the REST API origin.
	BaseURL string `yaml:"base_url"`

	// SocketURL is the socket.io push endpoint.
	SocketURL string `yaml:"socket_url"`

	// RenewInterval is how often the session is renewed. Default: 25m
	RenewInterval time.Duration `yaml:"renew_interval"`

	// RequestTimeout bounds every REST call. Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// WatchdogTimeout is how long the push channel may stay down before a
	// communication failure is logged. Default: 30s
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`

	// DebounceWindow collapses rapid bulb writes. Default: 500ms
	DebounceWindow time.Duration `yaml:"debounce_window"`

	// HostVersion is appended to the User-Agent ("Homebridge/<version>").
	HostVersion string `yaml:"host_version"`
}

// HomeKitConfig contains the HomeKit accessory host settings.
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Name        string `yaml:"name"`
	Pin         string `yaml:"pin"`
	StoragePath string `yaml:"storage_path"`
	Port        int    `yaml:"port"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// APIConfig contains the local status/control HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PathFromEnv returns ABODEBRIDGE_CONFIG or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv("ABODEBRIDGE_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ABODEBRIDGE_SECTION_KEY
// For example: ABODEBRIDGE_MQTT_HOST, ABODEBRIDGE_HOMEKIT_PIN.
// The Abode credentials are ABODEBRIDGE_EMAIL and ABODEBRIDGE_PASSWORD.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Abode: AbodeConfig{
			BaseURL:         "https://my.goabode.com",
			SocketURL:       "wss://my.goabode.com/socket.io/",
			RenewInterval:   25 * time.Minute,
			RequestTimeout:  30 * time.Second,
			WatchdogTimeout: 30 * time.Second,
			DebounceWindow:  500 * time.Millisecond,
		},
		HomeKit: HomeKitConfig{
			Name:        "Abode Bridge",
			StoragePath: "./data/homekit",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "abodebridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			TopicPrefix: "abode",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Abode credentials belong in the environment, not the file.
	if v := os.Getenv("ABODEBRIDGE_EMAIL"); v != "" {
		cfg.Abode.Email = v
	}
	if v := os.Getenv("ABODEBRIDGE_PASSWORD"); v != "" {
		cfg.Abode.Password = v
	}

	// MQTT
	if v := os.Getenv("ABODEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ABODEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ABODEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ABODEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// HomeKit
	if v := os.Getenv("ABODEBRIDGE_HOMEKIT_PIN"); v != "" {
		cfg.HomeKit.Pin = v
	}

	// API
	if v := os.Getenv("ABODEBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// Abode
	if c.Abode.Email == "" || c.Abode.Password == "" {
		errs = append(errs, "abode.email and abode.password are required (set ABODEBRIDGE_EMAIL and ABODEBRIDGE_PASSWORD)")
	}
	if c.Abode.BaseURL == "" {
		errs = append(errs, "abode.base_url is required")
	}
	if c.Abode.RenewInterval <= 0 {
		errs = append(errs, "abode.renew_interval must be positive")
	}
	if c.Abode.DebounceWindow < 0 {
		errs = append(errs, "abode.debounce_window must not be negative")
	}

	// HomeKit
	if c.HomeKit.Enabled && !validPin(c.HomeKit.Pin) {
		errs = append(errs, "homekit.pin must be 8 digits")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	// API
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validPin reports whether pin is exactly eight ASCII digits.
func validPin(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
