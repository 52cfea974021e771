package ingest

import "go.uber.org/zap"

// Config holds the per-connection parser settings.
type Config struct {
	BufferSize     int      // Bytes requested from the reader per read
	MaxPipelined   int      // Maximum requests accepted but not yet released
	MaxBodyBytes   int64    // Maximum decoded body size of one request
	MaxHeaderBytes int      // Maximum size of one header block or chunk trailer
	Logger         *zap.Logger
	Metrics        *Metrics // Optional; nil disables metrics
	ConnID         string   // Connection identifier attached to log entries
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		BufferSize:     16 << 10, // 16 KB
		MaxPipelined:   32,
		MaxBodyBytes:   8 << 20, // 8 MB
		MaxHeaderBytes: 1 << 20, // 1 MB
		Logger:         zap.NewNop(),
	}
}

// Normalize replaces limits that are zero or negative with their defaults
// and a nil Logger with a no-op logger.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.MaxPipelined <= 0 {
		c.MaxPipelined = def.MaxPipelined
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
}
