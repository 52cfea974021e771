// Package config provides configuration types for the shape-ingest server.
package config

import (
	"fmt"
	"time"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

// Config is the top-level configuration.
type Config struct {
	// Server configures the listener and connection timeouts.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Limits bounds what one connection may make the parser buffer.
	Limits LimitsConfig `yaml:"limits" mapstructure:"limits"`
}

// ServerConfig configures the TCP listener.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" if empty.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// MetricsAddr serves Prometheus metrics when set (e.g., "127.0.0.1:9090").
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// ReadTimeout bounds the wait for the next bytes of a request ("30s").
	ReadTimeout string `yaml:"read_timeout" mapstructure:"read_timeout" validate:"omitempty,duration"`

	// IdleTimeout bounds the wait for the first byte of the next request ("60s").
	IdleTimeout string `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"omitempty,duration"`

	// WriteTimeout bounds writing one response ("30s").
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout" validate:"omitempty,duration"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Development switches to human-readable console logs.
	Development bool `yaml:"development" mapstructure:"development"`
}

// LimitsConfig mirrors the parser limits of ingest.Config.
type LimitsConfig struct {
	BufferSize     int   `yaml:"buffer_size" mapstructure:"buffer_size" validate:"gte=0,lte=1048576"`
	MaxPipelined   int   `yaml:"max_pipelined" mapstructure:"max_pipelined" validate:"gte=0"`
	MaxBodyBytes   int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=0"`
	MaxHeaderBytes int   `yaml:"max_header_bytes" mapstructure:"max_header_bytes" validate:"gte=0"`
}

// SetDefaults fills in every unset optional field.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.IdleTimeout == "" {
		c.Server.IdleTimeout = "60s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	def := ingest.DefaultConfig()
	if c.Limits.BufferSize == 0 {
		c.Limits.BufferSize = def.BufferSize
	}
	if c.Limits.MaxPipelined == 0 {
		c.Limits.MaxPipelined = def.MaxPipelined
	}
	if c.Limits.MaxBodyBytes == 0 {
		c.Limits.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.Limits.MaxHeaderBytes == 0 {
		c.Limits.MaxHeaderBytes = def.MaxHeaderBytes
	}
}

// Timeouts returns the parsed server timeouts.
func (c *ServerConfig) Timeouts() (read, idle, write time.Duration, err error) {
	if read, err = time.ParseDuration(c.ReadTimeout); err != nil {
		return 0, 0, 0, fmt.Errorf("server.read_timeout: %w", err)
	}
	if idle, err = time.ParseDuration(c.IdleTimeout); err != nil {
		return 0, 0, 0, fmt.Errorf("server.idle_timeout: %w", err)
	}
	if write, err = time.ParseDuration(c.WriteTimeout); err != nil {
		return 0, 0, 0, fmt.Errorf("server.write_timeout: %w", err)
	}
	return read, idle, write, nil
}

// ParserConfig returns the parser settings for one connection.
func (c *LimitsConfig) ParserConfig() ingest.Config {
	cfg := ingest.DefaultConfig()
	cfg.BufferSize = c.BufferSize
	cfg.MaxPipelined = c.MaxPipelined
	cfg.MaxBodyBytes = c.MaxBodyBytes
	cfg.MaxHeaderBytes = c.MaxHeaderBytes
	return cfg
}
