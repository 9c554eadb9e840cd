package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay and client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains relay listener configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	TLSCertFile     string        `yaml:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PongWait        time.Duration `yaml:"pong_wait"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	SendQueue       int           `yaml:"send_queue"`
	AnswerProbes    bool          `yaml:"answer_probes"`
}

// ClientConfig contains streaming client configuration
type ClientConfig struct {
	URI              string        `yaml:"uri"`
	Channel          string        `yaml:"channel"`
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	ChunkSamples     int           `yaml:"chunk_samples"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	EchoProbes       bool          `yaml:"echo_probes"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	InsecureTLS      bool          `yaml:"insecure_tls"`
	CAFile           string        `yaml:"ca_file"`
	Suppressor       string        `yaml:"suppressor"`
	GateThreshold    int           `yaml:"gate_threshold"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8765,
			WriteTimeout:    10 * time.Second,
			PongWait:        60 * time.Second,
			MaxMessageBytes: 64 * 1024,
			SendQueue:       256,
		},
		Client: ClientConfig{
			URI:              "wss://localhost:8765/ws",
			Channel:          "default",
			SampleRate:       44100,
			Channels:         1,
			ChunkSamples:     256,
			ProbeInterval:    5 * time.Second,
			EchoProbes:       true,
			HandshakeTimeout: 10 * time.Second,
			Suppressor:       "none",
			GateThreshold:    500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// any) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.Server.TLSCertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.Server.TLSKeyFile = v
	}
	if v := os.Getenv("RELAY_URI"); v != "" {
		c.Client.URI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if (s.TLSCertFile == "") != (s.TLSKeyFile == "") {
		return errors.New("tls_cert_file and tls_key_file must be set together")
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %s", s.WriteTimeout)
	}
	if s.PongWait < time.Second {
		return fmt.Errorf("pong_wait must be at least 1s, got %s", s.PongWait)
	}
	if s.MaxMessageBytes < 512 {
		return fmt.Errorf("max_message_bytes must be at least 512, got %d", s.MaxMessageBytes)
	}
	if s.SendQueue < 1 {
		return fmt.Errorf("send_queue must be at least 1, got %d", s.SendQueue)
	}
	return nil
}

// TLSEnabled reports whether the relay serves wss.
func (s *ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != ""
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (c *ClientConfig) Validate() error {
	if c.URI == "" {
		return errors.New("uri cannot be empty")
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.ChunkSamples < 16 || c.ChunkSamples > 16384 {
		return fmt.Errorf("chunk_samples must be between 16 and 16384, got %d", c.ChunkSamples)
	}
	if c.ProbeInterval < 100*time.Millisecond {
		return fmt.Errorf("probe_interval must be at least 100ms, got %s", c.ProbeInterval)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive, got %s", c.HandshakeTimeout)
	}
	switch c.Suppressor {
	case "none", "gate":
	default:
		return fmt.Errorf("suppressor must be 'none' or 'gate', got '%s'", c.Suppressor)
	}
	if c.GateThreshold < 0 || c.GateThreshold > 32767 {
		return fmt.Errorf("gate_threshold must be between 0 and 32767, got %d", c.GateThreshold)
	}
	return nil
}

// FrameBytes is the payload size of one captured frame.
func (c *ClientConfig) FrameBytes() int {
	return c.ChunkSamples * c.Channels * 2
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}
