package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConfig_Success(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if path != GetDefaultConfigPath() {
		t.Errorf("Expected path %q, got %q", GetDefaultConfigPath(), path)
	}
	if !ConfigExists() {
		t.Error("Expected config file to exist after InitConfig")
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if _, err := InitConfig(false); err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if _, err := InitConfig(true); err != nil {
		t.Fatalf("Forced InitConfig failed: %v", err)
	}
}

func TestInitConfigToPath_ForceOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := InitConfigToPath(path, false); err == nil {
		t.Fatal("Expected error without force")
	}
	if err := InitConfigToPath(path, true); err != nil {
		t.Fatalf("InitConfigToPath with force failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) == "old" {
		t.Error("Expected file to be overwritten")
	}
}

func TestGenerateYAMLWithComments(t *testing.T) {
	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	content := string(data)
	for _, want := range []string{
		"# dittofolders configuration",
		"DITTOFOLDERS_LOGGING_LEVEL",
		"shutdown_timeout: 30s",
		"worker_pool_size: 16",
		"real_tree: \"0\"",
		"catch_all: true",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected generated YAML to contain %q:\n%s", want, content)
		}
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config should load, got: %v", err)
	}

	def := GetDefaultConfig()
	if len(cfg.Trees) != len(def.Trees) || len(cfg.Storages) != len(def.Storages) {
		t.Errorf("Expected %d trees and %d storages, got %d and %d",
			len(def.Trees), len(def.Storages), len(cfg.Trees), len(cfg.Storages))
	}
	if cfg.Storages[1].Options["id_prefix"] != "v" {
		t.Errorf("Expected virtual storage id prefix to survive the round trip, got %v", cfg.Storages[1].Options)
	}
	if cfg.Server.ShutdownTimeout != def.Server.ShutdownTimeout {
		t.Errorf("Expected shutdown timeout %v, got %v", def.Server.ShutdownTimeout, cfg.Server.ShutdownTimeout)
	}
}
