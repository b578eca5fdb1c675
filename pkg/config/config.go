package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// Config represents the complete dittofolders configuration.
//
// This structure captures all configurable aspects of the folder service:
//   - Logging configuration
//   - Server-wide settings
//   - Performer settings (worker pool, content types, reserved names)
//   - Folder trees
//   - Storages and their type-specific options
//   - Metrics exposition
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOFOLDERS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Storage Configuration Pattern:
// Each storage implementation defines its own configuration type. A storage
// entry carries its type and an options map; only the map of the selected
// type is decoded, by the storage factory.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Performer configures the folder operations
	Performer PerformerConfig `mapstructure:"performer" yaml:"performer"`

	// Trees defines the folder trees
	Trees []TreeConfig `mapstructure:"trees" yaml:"trees" validate:"dive"`

	// Storages defines the storages serving the trees
	Storages []StorageConfig `mapstructure:"storages" yaml:"storages" validate:"dive"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// PerformerConfig configures the folder service.
type PerformerConfig struct {
	// WorkerPoolSize bounds the storage tasks running concurrently
	WorkerPoolSize int `mapstructure:"worker_pool_size" yaml:"worker_pool_size" validate:"gte=1"`

	// AllowedContentTypes restricts the content types visible to actors.
	// Empty allows every content type.
	AllowedContentTypes []string `mapstructure:"allowed_content_types" yaml:"allowed_content_types,omitempty" validate:"dive,oneof=mail calendar contacts tasks infostore system unbound"`

	// ReservedNames cannot be used below system folders
	ReservedNames []string `mapstructure:"reserved_names" yaml:"reserved_names,omitempty" validate:"dive,required"`
}

// TreeConfig defines one folder tree.
type TreeConfig struct {
	// ID is the tree identifier (e.g. "0")
	ID string `mapstructure:"id" yaml:"id" validate:"required"`

	// Name is a display name
	Name string `mapstructure:"name" yaml:"name"`

	// Virtual marks a tree whose folders mirror the folders of RealTree
	Virtual bool `mapstructure:"virtual" yaml:"virtual,omitempty"`

	// RealTree is the tree backing a virtual tree
	// Only used when Virtual = true
	RealTree string `mapstructure:"real_tree" yaml:"real_tree,omitempty" validate:"required_if=Virtual true"`
}

// StorageConfig defines one storage.
//
// The Type field determines which storage implementation is used. Options
// holds the type-specific settings:
//   - memory: first_id, id_prefix
//   - badger: db_path, in_memory, node_id, block_cache_size_mb, index_cache_size_mb
//   - mail: account, root_name, delimiter, mailboxes, trash_name
//   - s3: region, endpoint, access_key_id, secret_access_key, max_retries, bucket, key_prefix
//   - postgres: url, table_prefix, max_conns, node_id
//   - mongo: uri, database, collection_prefix, node_id
type StorageConfig struct {
	// Name is the unique storage name
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// Type selects the implementation
	// Valid values: memory, badger, mail, s3, postgres, mongo
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger mail s3 postgres mongo"`

	// Scope declares the trees and folder ids served
	Scope folder.Scope `mapstructure:"scope" yaml:"scope"`

	// Priority ranks the storage's folders in merged listings
	Priority int `mapstructure:"priority" yaml:"priority,omitempty"`

	// ContentTypes lists the supported content types. Empty = all.
	ContentTypes []string `mapstructure:"content_types" yaml:"content_types,omitempty" validate:"dive,oneof=mail calendar contacts tasks infostore system unbound"`

	// DefaultContentType is used for folders created without one
	DefaultContentType string `mapstructure:"default_content_type" yaml:"default_content_type,omitempty" validate:"omitempty,oneof=mail calendar contacts tasks infostore system unbound"`

	// DefaultFolders maps a content type to its default folder id
	DefaultFolders map[string]string `mapstructure:"default_folders" yaml:"default_folders,omitempty"`

	// TrashFolderID is the folder trashed folders are moved below.
	// Empty disables trashing.
	TrashFolderID string `mapstructure:"trash_folder_id" yaml:"trash_folder_id,omitempty"`

	// Seed creates the system folders of every served tree at startup
	// when they are missing
	Seed bool `mapstructure:"seed" yaml:"seed,omitempty"`

	// Options contains the type-specific configuration
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port of the HTTP endpoint
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOFOLDERS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOFOLDERS_ prefix and underscores
	// Example: DITTOFOLDERS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOFOLDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees environment variables of keys viper knows about
	for _, key := range []string{
		"logging.level",
		"logging.format",
		"logging.output",
		"server.shutdown_timeout",
		"performer.worker_pool_size",
		"metrics.enabled",
		"metrics.port",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittofolders/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittofolders")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittofolders")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
