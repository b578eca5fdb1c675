package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ServerAndPerformer(t *testing.T) {
	cfg := &Config{Performer: PerformerConfig{AllowedContentTypes: []string{"Mail"}}}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Performer.WorkerPoolSize != 16 {
		t.Errorf("Expected default worker pool 16, got %d", cfg.Performer.WorkerPoolSize)
	}
	if cfg.Performer.AllowedContentTypes[0] != "mail" {
		t.Errorf("Expected normalized content type 'mail', got %q", cfg.Performer.AllowedContentTypes[0])
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_TreesAndStorages(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if len(cfg.Trees) != 2 {
		t.Fatalf("Expected 2 default trees, got %d", len(cfg.Trees))
	}
	if cfg.Trees[0].ID != folder.RealTreeID || cfg.Trees[0].Virtual {
		t.Errorf("Expected real tree %q first, got %+v", folder.RealTreeID, cfg.Trees[0])
	}
	if !cfg.Trees[1].Virtual || cfg.Trees[1].RealTree != folder.RealTreeID {
		t.Errorf("Expected virtual tree backed by %q, got %+v", folder.RealTreeID, cfg.Trees[1])
	}

	if len(cfg.Storages) != 2 {
		t.Fatalf("Expected one storage per tree, got %d", len(cfg.Storages))
	}
	for i, s := range cfg.Storages {
		if s.Type != "memory" || !s.Seed || !s.Scope.CatchAll {
			t.Errorf("storages[%d]: expected seeded catch-all memory storage, got %+v", i, s)
		}
		if s.Scope.TreeIDs[0] != cfg.Trees[i].ID {
			t.Errorf("storages[%d]: expected tree %q, got %v", i, cfg.Trees[i].ID, s.Scope.TreeIDs)
		}
	}
	if cfg.Storages[1].Options["id_prefix"] != "v" {
		t.Errorf("Expected virtual storage id prefix 'v', got %v", cfg.Storages[1].Options)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{ShutdownTimeout: time.Minute},
		Performer: PerformerConfig{WorkerPoolSize: 3},
		Trees:     []TreeConfig{{ID: "7"}},
		Storages: []StorageConfig{{
			Name:  "db",
			Type:  "Badger",
			Scope: folder.Scope{TreeIDs: []string{"7"}},
		}},
	}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != time.Minute {
		t.Errorf("Expected explicit shutdown timeout preserved, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Performer.WorkerPoolSize != 3 {
		t.Errorf("Expected explicit worker pool preserved, got %d", cfg.Performer.WorkerPoolSize)
	}
	if len(cfg.Trees) != 1 || cfg.Trees[0].Name != "tree-7" {
		t.Errorf("Expected single tree named 'tree-7', got %+v", cfg.Trees)
	}
	if len(cfg.Storages) != 1 || cfg.Storages[0].Type != "badger" {
		t.Errorf("Expected single storage of type 'badger', got %+v", cfg.Storages)
	}
	if cfg.Storages[0].Options == nil {
		t.Error("Expected options map to be initialized")
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config should be valid, got: %v", err)
	}
}
