package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "info"

performer:
  reserved_names: ["Archive"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Performer.WorkerPoolSize != 16 {
		t.Errorf("Expected default worker_pool_size 16, got %d", cfg.Performer.WorkerPoolSize)
	}
	if len(cfg.Performer.ReservedNames) != 1 || cfg.Performer.ReservedNames[0] != "Archive" {
		t.Errorf("Expected reserved names [Archive], got %v", cfg.Performer.ReservedNames)
	}
	if len(cfg.Trees) != 2 {
		t.Errorf("Expected 2 default trees, got %d", len(cfg.Trees))
	}
	if len(cfg.Storages) != 2 {
		t.Errorf("Expected 2 default storages, got %d", len(cfg.Storages))
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// An explicit, missing path keeps the user's config out of the test
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Storages[0].Type != "memory" {
		t.Errorf("Expected default storage type 'memory', got %q", cfg.Storages[0].Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("logging:\n  level: [unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestLoad_TreesAndStorages(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
trees:
  - id: "0"
    name: "real"
storages:
  - name: "db"
    type: "badger"
    seed: true
    priority: 1
    content_types: ["Calendar", "contacts"]
    default_folders:
      calendar: "100"
    scope:
      trees: ["0"]
      catch_all: true
    options:
      in_memory: true
      node_id: 3
  - name: "mail"
    type: "mail"
    scope:
      trees: ["0"]
      folder_prefixes: ["default0"]
    options:
      mailboxes: ["INBOX/Work"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Trees) != 1 || cfg.Trees[0].ID != "0" {
		t.Fatalf("Expected single tree 0, got %+v", cfg.Trees)
	}
	db := cfg.Storages[0]
	if !db.Scope.CatchAll || len(db.Scope.TreeIDs) != 1 {
		t.Errorf("Expected catch-all scope on tree 0, got %+v", db.Scope)
	}
	if db.ContentTypes[0] != "calendar" {
		t.Errorf("Expected normalized content type 'calendar', got %q", db.ContentTypes[0])
	}
	if db.DefaultFolders["calendar"] != "100" {
		t.Errorf("Expected calendar default folder 100, got %v", db.DefaultFolders)
	}
	if db.Options["in_memory"] != true {
		t.Errorf("Expected in_memory option, got %v", db.Options)
	}
	if cfg.Storages[1].Scope.FolderPrefixes[0] != "default0" {
		t.Errorf("Expected folder prefix default0, got %+v", cfg.Storages[1].Scope)
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "DEBUG"
format = "json"

[metrics]
enabled = true
port = 9191
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9191 {
		t.Errorf("Expected metrics enabled on 9191, got %+v", cfg.Metrics)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("logging:\n  level: INFO\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("DITTOFOLDERS_LOGGING_LEVEL", "WARN")
	t.Setenv("DITTOFOLDERS_PERFORMER_WORKER_POOL_SIZE", "4")
	t.Setenv("DITTOFOLDERS_SERVER_SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN' from environment, got %q", cfg.Logging.Level)
	}
	if cfg.Performer.WorkerPoolSize != 4 {
		t.Errorf("Expected worker_pool_size 4 from environment, got %d", cfg.Performer.WorkerPoolSize)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s from environment, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storages:
  - name: "x"
    type: "ftp"
    scope:
      trees: ["0"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown storage type, got nil")
	}
}

func TestConfigDirHonorsXDG(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, "dittofolders") {
		t.Errorf("Expected config dir under XDG_CONFIG_HOME, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(tmpDir, "dittofolders", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
	if ConfigExists() {
		t.Error("Expected no config file in a fresh directory")
	}
}
