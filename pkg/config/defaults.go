package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Storage-specific defaults are handled by the storage implementations
//   - Without trees, a real tree "0" and its virtual tree "1" are configured
//   - Without storages, one seeded memory storage serves each tree
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyPerformerDefaults(&cfg.Performer)
	applyMetricsDefaults(&cfg.Metrics)

	if len(cfg.Trees) == 0 {
		cfg.Trees = defaultTrees()
	}
	applyTreeDefaults(cfg.Trees)

	if len(cfg.Storages) == 0 {
		cfg.Storages = defaultStorages(cfg.Trees)
	}
	applyStorageDefaults(cfg.Storages)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyPerformerDefaults sets performer defaults.
func applyPerformerDefaults(cfg *PerformerConfig) {
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = 16
	}
	for i, ct := range cfg.AllowedContentTypes {
		cfg.AllowedContentTypes[i] = strings.ToLower(ct)
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func defaultTrees() []TreeConfig {
	return []TreeConfig{
		{ID: folder.RealTreeID, Name: "real"},
		{ID: folder.VirtualTreeID, Name: "virtual", Virtual: true, RealTree: folder.RealTreeID},
	}
}

// applyTreeDefaults names unnamed trees after their id.
func applyTreeDefaults(trees []TreeConfig) {
	for i := range trees {
		if trees[i].Name == "" {
			trees[i].Name = "tree-" + trees[i].ID
		}
	}
}

// defaultStorages returns one seeded, catch-all memory storage per tree.
// Virtual tree storages use a distinct id prefix so their ids never collide
// with real folder ids.
func defaultStorages(trees []TreeConfig) []StorageConfig {
	storages := make([]StorageConfig, 0, len(trees))
	for _, t := range trees {
		sc := StorageConfig{
			Name:  "memory-" + t.ID,
			Type:  "memory",
			Scope: folder.Scope{TreeIDs: []string{t.ID}, CatchAll: true},
			Seed:  true,
		}
		if t.Virtual {
			sc.Options = map[string]any{"id_prefix": "v"}
		}
		storages = append(storages, sc)
	}
	return storages
}

// applyStorageDefaults normalizes storage entries.
func applyStorageDefaults(storages []StorageConfig) {
	for i := range storages {
		s := &storages[i]
		s.Type = strings.ToLower(s.Type)
		if s.Options == nil {
			s.Options = make(map[string]any)
		}
		for j, ct := range s.ContentTypes {
			s.ContentTypes[j] = strings.ToLower(ct)
		}
		s.DefaultContentType = strings.ToLower(s.DefaultContentType)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
