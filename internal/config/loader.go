package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, shape-ingest.yaml is looked up in the
// working directory.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("shape-ingest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// Environment variable support: SHAPE_INGEST_SERVER_ADDR
	viper.SetEnvPrefix("SHAPE_INGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// bindNestedEnvKeys binds every config key so that nested values can be
// overridden from the environment.
// Example: SHAPE_INGEST_LIMITS_MAX_PIPELINED overrides limits.max_pipelined
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("server.metrics_addr")
	_ = viper.BindEnv("server.read_timeout")
	_ = viper.BindEnv("server.idle_timeout")
	_ = viper.BindEnv("server.write_timeout")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.development")

	_ = viper.BindEnv("limits.buffer_size")
	_ = viper.BindEnv("limits.max_pipelined")
	_ = viper.BindEnv("limits.max_body_bytes")
	_ = viper.BindEnv("limits.max_header_bytes")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
