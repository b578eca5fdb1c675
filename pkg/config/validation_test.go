package config

import (
	"strings"
	"testing"

	"github.com/marmos91/dittofolders/pkg/folder"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			modify:  func(cfg *Config) { cfg.Logging.Level = "TRACE" },
			wantErr: "oneof",
		},
		{
			name:    "invalid log format",
			modify:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "oneof",
		},
		{
			name:    "non-positive shutdown timeout",
			modify:  func(cfg *Config) { cfg.Server.ShutdownTimeout = -1 },
			wantErr: "gt",
		},
		{
			name:    "empty worker pool",
			modify:  func(cfg *Config) { cfg.Performer.WorkerPoolSize = 0 },
			wantErr: "gte",
		},
		{
			name:    "unknown allowed content type",
			modify:  func(cfg *Config) { cfg.Performer.AllowedContentTypes = []string{"fax"} },
			wantErr: "oneof",
		},
		{
			name:    "invalid metrics port",
			modify:  func(cfg *Config) { cfg.Metrics.Port = 70000 },
			wantErr: "max",
		},
		{
			name:    "no trees",
			modify:  func(cfg *Config) { cfg.Trees = nil },
			wantErr: "at least one tree",
		},
		{
			name: "duplicate tree",
			modify: func(cfg *Config) {
				cfg.Trees = append(cfg.Trees, TreeConfig{ID: folder.RealTreeID, Name: "again"})
			},
			wantErr: "duplicate tree id",
		},
		{
			name:    "virtual tree without real tree",
			modify:  func(cfg *Config) { cfg.Trees[1].RealTree = "" },
			wantErr: "required_if",
		},
		{
			name:    "virtual tree on unknown tree",
			modify:  func(cfg *Config) { cfg.Trees[1].RealTree = "9" },
			wantErr: "not configured",
		},
		{
			name: "virtual tree on virtual tree",
			modify: func(cfg *Config) {
				cfg.Trees = append(cfg.Trees, TreeConfig{ID: "2", Name: "nested", Virtual: true, RealTree: folder.VirtualTreeID})
			},
			wantErr: "is not a real tree",
		},
		{
			name:    "no storages",
			modify:  func(cfg *Config) { cfg.Storages = nil },
			wantErr: "at least one storage",
		},
		{
			name:    "unknown storage type",
			modify:  func(cfg *Config) { cfg.Storages[0].Type = "ftp" },
			wantErr: "oneof",
		},
		{
			name:    "duplicate storage",
			modify:  func(cfg *Config) { cfg.Storages[1].Name = cfg.Storages[0].Name },
			wantErr: "duplicate storage name",
		},
		{
			name:    "storage without tree",
			modify:  func(cfg *Config) { cfg.Storages[0].Scope.TreeIDs = nil },
			wantErr: "at least one tree",
		},
		{
			name:    "storage on unknown tree",
			modify:  func(cfg *Config) { cfg.Storages[0].Scope.TreeIDs = []string{"42"} },
			wantErr: "tree \"42\" not configured",
		},
		{
			name:    "unknown storage content type",
			modify:  func(cfg *Config) { cfg.Storages[0].DefaultContentType = "fax" },
			wantErr: "oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Expected validation error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_LowercaseLogLevelAccepted(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "debug"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected lowercase level to be accepted, got: %v", err)
	}
}
