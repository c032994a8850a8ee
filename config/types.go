package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Options OptionsConfig `mapstructure:"options"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AuthConfig holds the RetroAchievements credentials. The API key is the
// static web API key from the user's settings page; there is no token
// refresh.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	APIKey   string `mapstructure:"api_key"`
}

// PathsConfig holds the cache and output directories plus the ROM base
// paths used when rendering collection manifests
type PathsConfig struct {
	CacheDir         string `mapstructure:"cache_dir"`
	DATDir           string `mapstructure:"dat_dir"`
	CollectionDir    string `mapstructure:"collection_dir"`
	RetroPieBasePath string `mapstructure:"retropie_base_path"`
	BatoceraBasePath string `mapstructure:"batocera_base_path"`
}

// OptionsConfig controls what fetched data ends up in generated files
type OptionsConfig struct {
	ROMExtension        string `mapstructure:"rom_extension"`
	IncludeAchievements bool   `mapstructure:"include_achievements"`
	IncludePatchURLs    bool   `mapstructure:"include_patch_urls"`
}

// FetchConfig tunes the client retry schedule and the pipeline pacing
type FetchConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	ItemDelay      time.Duration `mapstructure:"item_delay"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
