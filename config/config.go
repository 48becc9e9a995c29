// Package config holds the client configuration: defaults, an optional YAML
// file and environment variable overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid indicates a configuration value outside its allowed range.
var ErrInvalid = errors.New("invalid configuration")

// Proxy routes the control connection through a SOCKS5 proxy.
type Proxy struct {
	Type     string `yaml:"type,omitempty"`
	Address  string `yaml:"address,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Config holds all client configuration.
type Config struct {
	// Server is the control server as host:port.
	Server string `yaml:"server,omitempty"`

	// ClientPort is the local media port announced in SETUP. Zero picks an
	// ephemeral port.
	ClientPort int `yaml:"clientPort,omitempty"`

	// DialTimeout bounds establishing the control connection.
	DialTimeout time.Duration `yaml:"dialTimeout,omitempty"`
	// ControlTimeout bounds one command round trip.
	ControlTimeout time.Duration `yaml:"controlTimeout,omitempty"`

	// ReceiveInterval is the minimum period of the receive task.
	ReceiveInterval time.Duration `yaml:"receiveInterval,omitempty"`
	// ReceiveTimeout bounds a single datagram read.
	ReceiveTimeout time.Duration `yaml:"receiveTimeout,omitempty"`

	// FrameRate is the target playback rate in frames per second.
	FrameRate float64 `yaml:"frameRate,omitempty"`
	// WarmupDelay is the wait before the first dequeue after PLAY.
	WarmupDelay time.Duration `yaml:"warmupDelay,omitempty"`
	// IdleDelay is the pause after a playback tick finds the buffer empty.
	IdleDelay time.Duration `yaml:"idleDelay,omitempty"`

	// SkipOrphans drops frames that fall behind the playback cursor instead of
	// leaving them at the head of the reorder buffer.
	SkipOrphans bool `yaml:"skipOrphans,omitempty"`

	Proxy *Proxy `yaml:"proxy,omitempty"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"logLevel,omitempty"`
	// MetricsAddr, if set, serves Prometheus metrics on this address.
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ClientPort:      0,
		DialTimeout:     10 * time.Second,
		ControlTimeout:  10 * time.Second,
		ReceiveInterval: 20 * time.Millisecond,
		ReceiveTimeout:  time.Second,
		FrameRate:       24,
		WarmupDelay:     3 * time.Second,
		IdleDelay:       time.Second,
		LogLevel:        "info",
	}
}

// Load reads a YAML file over the defaults. Durations are written as strings
// such as "20ms". Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RTSP_* environment variables. Unparsable
// values are ignored.
func (c *Config) ApplyEnv() {
	c.Server = getEnv("RTSP_SERVER", c.Server)
	c.ClientPort = getIntEnv("RTSP_CLIENT_PORT", c.ClientPort)
	c.DialTimeout = getDurationEnv("RTSP_DIAL_TIMEOUT", c.DialTimeout)
	c.ControlTimeout = getDurationEnv("RTSP_CONTROL_TIMEOUT", c.ControlTimeout)
	c.ReceiveInterval = getDurationEnv("RTSP_RECEIVE_INTERVAL", c.ReceiveInterval)
	c.ReceiveTimeout = getDurationEnv("RTSP_RECEIVE_TIMEOUT", c.ReceiveTimeout)
	c.FrameRate = getFloatEnv("RTSP_FRAME_RATE", c.FrameRate)
	c.WarmupDelay = getDurationEnv("RTSP_WARMUP_DELAY", c.WarmupDelay)
	c.IdleDelay = getDurationEnv("RTSP_IDLE_DELAY", c.IdleDelay)
	c.SkipOrphans = getBoolEnv("RTSP_SKIP_ORPHANS", c.SkipOrphans)
	c.LogLevel = getEnv("RTSP_LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnv("RTSP_METRICS_ADDR", c.MetricsAddr)

	if addr := os.Getenv("RTSP_SOCKS5_PROXY"); addr != "" {
		if c.Proxy == nil {
			c.Proxy = &Proxy{}
		}
		c.Proxy.Type = "socks5"
		c.Proxy.Address = addr
	}
}

// FrameInterval returns the playback period derived from FrameRate.
func (c Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FrameRate)
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	if c.Server != "" {
		if _, _, err := net.SplitHostPort(c.Server); err != nil {
			return fmt.Errorf("%w: server %q: %w", ErrInvalid, c.Server, err)
		}
	}
	if c.ClientPort < 0 || c.ClientPort > 65535 {
		return fmt.Errorf("%w: client port %d out of range", ErrInvalid, c.ClientPort)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate must be positive, got %v", ErrInvalid, c.FrameRate)
	}

	positive := map[string]time.Duration{
		"receiveInterval": c.ReceiveInterval,
		"receiveTimeout":  c.ReceiveTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, name, d)
		}
	}

	nonNegative := map[string]time.Duration{
		"dialTimeout":    c.DialTimeout,
		"controlTimeout": c.ControlTimeout,
		"warmupDelay":    c.WarmupDelay,
		"idleDelay":      c.IdleDelay,
	}
	for name, d := range nonNegative {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, name, d)
		}
	}

	if c.Proxy != nil {
		if c.Proxy.Type != "socks5" {
			return fmt.Errorf("%w: unsupported proxy type %q", ErrInvalid, c.Proxy.Type)
		}
		if _, _, err := net.SplitHostPort(c.Proxy.Address); err != nil {
			return fmt.Errorf("%w: proxy address %q: %w", ErrInvalid, c.Proxy.Address, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
