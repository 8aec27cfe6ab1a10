package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ArrInstance describes one Radarr or Sonarr instance and the SABnzbd
// category it is responsible for
type ArrInstance struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	APIKey   string `mapstructure:"api_key"`
	Category string `mapstructure:"category"`
}

// Config holds all application configuration
type Config struct {
	// SABnzbd
	SABnzbdURL    string
	SABnzbdAPIKey string
	HistoryLimit  int

	// Metadata instances
	Radarr []ArrInstance
	Sonarr []ArrInstance

	// Sync
	SyncInterval  time.Duration
	MissThreshold int // consecutive absent cycles before a record is terminalized

	// Matcher
	MaxConcurrentLookups int
	MinMatchScore        float64

	// Cleanup
	CleanupInterval time.Duration
	RetentionWindow time.Duration

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/trackarr.db

	// Logging
	LogLevel string
}

// Load loads configuration from $CONFIG_DIR/config.yaml and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "trackarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("sabnzbd.history_limit", 100)
	viper.SetDefault("sync.interval_seconds", 5)
	viper.SetDefault("sync.miss_threshold", 3)
	viper.SetDefault("matcher.max_concurrent", 4)
	viper.SetDefault("matcher.min_score", 0.6)
	viper.SetDefault("cleanup.check_interval_minutes", 60)
	viper.SetDefault("cleanup.completed_after_hours", 48)
	viper.SetDefault("server.port", "3001")
	viper.SetDefault("log_level", "info")

	// Load config.yaml if present (env vars can supply everything)
	_ = viper.ReadInConfig()

	config := &Config{
		SABnzbdURL:    viper.GetString("sabnzbd.url"),
		SABnzbdAPIKey: viper.GetString("sabnzbd.api_key"),
		HistoryLimit:  viper.GetInt("sabnzbd.history_limit"),

		SyncInterval:  time.Duration(viper.GetInt("sync.interval_seconds")) * time.Second,
		MissThreshold: viper.GetInt("sync.miss_threshold"),

		MaxConcurrentLookups: viper.GetInt("matcher.max_concurrent"),
		MinMatchScore:        viper.GetFloat64("matcher.min_score"),

		CleanupInterval: time.Duration(viper.GetInt("cleanup.check_interval_minutes")) * time.Minute,
		RetentionWindow: time.Duration(viper.GetInt("cleanup.completed_after_hours")) * time.Hour,

		ServerPort: viper.GetString("server.port"),

		DatabaseFile: filepath.Join(configDir, "trackarr.db"),

		LogLevel: viper.GetString("log_level"),
	}

	if err := viper.UnmarshalKey("radarr", &config.Radarr); err != nil {
		return nil, fmt.Errorf("failed to parse radarr instances: %w", err)
	}
	if err := viper.UnmarshalKey("sonarr", &config.Sonarr); err != nil {
		return nil, fmt.Errorf("failed to parse sonarr instances: %w", err)
	}

	// Validate required fields
	if config.SABnzbdURL == "" {
		return nil, fmt.Errorf("sabnzbd.url is required")
	}
	if config.SABnzbdAPIKey == "" {
		return nil, fmt.Errorf("sabnzbd.api_key is required")
	}

	return config, nil
}
