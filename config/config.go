package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Load loads the configuration from file. A missing config file is not an
// error when no explicit path was given; defaults apply and the client
// reports missing credentials when they are first needed.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".radatool"))
		}

		// Check /etc
		v.AddConfigPath("/etc/radatool/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		if configPath != "" {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Path defaults
	v.SetDefault("paths.cache_dir", "cache")
	v.SetDefault("paths.dat_dir", ".")
	v.SetDefault("paths.collection_dir", ".")
	v.SetDefault("paths.retropie_base_path", "/home/pi/RetroPie/roms")
	v.SetDefault("paths.batocera_base_path", "/userdata/roms")

	// Output defaults
	v.SetDefault("options.rom_extension", ".zip")
	v.SetDefault("options.include_achievements", true)
	v.SetDefault("options.include_patch_urls", true)

	// Fetch defaults
	v.SetDefault("fetch.max_retries", 4)
	v.SetDefault("fetch.initial_backoff", 3*time.Second)
	v.SetDefault("fetch.item_delay", 600*time.Millisecond)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Paths.CacheDir == "" {
		return fmt.Errorf("paths.cache_dir is required")
	}

	if cfg.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	if cfg.Fetch.InitialBackoff < 0 {
		return fmt.Errorf("fetch.initial_backoff must not be negative")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
