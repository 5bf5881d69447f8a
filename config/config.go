// Package config loads the YAML configuration for a cipctl/cipmon
// instance, grounded on the teacher's config.Config field layout and
// yaml-tag conventions but trimmed to this client's scope: one PLC
// connection, the tag poll list, and the optional publish/cache/gateway
// sections.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PLCConfig addresses one controller and how to reach it.
type PLCConfig struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"` // host:port, default port 44818 if omitted
	Slot       byte   `yaml:"slot"`
	RoutePath  []byte `yaml:"route_path,omitempty"`
	PollRate   time.Duration `yaml:"poll_rate"`
	Tags       []string `yaml:"tags"`
}

// LoggingConfig controls the injected logging.Logger.
type LoggingConfig struct {
	FilePath string `yaml:"file_path,omitempty"`
	HexDump  bool   `yaml:"hex_dump,omitempty"`
}

// MQTTConfig configures the optional MQTT publish sink.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	RootTopic string `yaml:"root_topic"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
}

// KafkaConfig configures the optional Kafka publish sink.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// CacheConfig configures the optional Redis/Valkey snapshot cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Address string        `yaml:"address"`
	TTL     time.Duration `yaml:"ttl"`
}

// GatewayConfig configures the optional HTTP/WebSocket front end.
type GatewayConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ListenAddress  string `yaml:"listen_address"`
	OperatorUser   string `yaml:"operator_user"`
	OperatorHash   string `yaml:"operator_password_hash"` // bcrypt hash
	SessionSecret  string `yaml:"session_secret"`
}

// Config is the complete cipctl configuration.
type Config struct {
	PLC     PLCConfig     `yaml:"plc"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	MQTT    MQTTConfig    `yaml:"mqtt,omitempty"`
	Kafka   KafkaConfig   `yaml:"kafka,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.PLC.Address == "" {
		return nil, fmt.Errorf("config: plc.address is required")
	}
	if cfg.PLC.PollRate == 0 {
		cfg.PLC.PollRate = 2 * time.Second
	}
	return &cfg, nil
}
