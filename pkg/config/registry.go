package config

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/metrics"
	"github.com/marmos91/dittofolders/pkg/performer"
	"github.com/marmos91/dittofolders/pkg/permission"
	"github.com/marmos91/dittofolders/pkg/registry"
)

// seeder is implemented by storages able to store system folders directly.
type seeder interface {
	Seed(ctx context.Context, folders ...*folder.Folder) error
}

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Registers the real trees, then the virtual trees
//  2. Creates every storage from cfg.Storages
//  3. Seeds the system folders of storages with seed enabled
//  4. Registers the storages in configuration order
//
// Storages created before a failure are closed again.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Complete configuration loaded from config file
//
// Returns:
//   - *registry.Registry: Fully initialized registry
//   - error: If tree registration, storage creation or seeding fails
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
//	defer reg.Close()
func InitializeRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	logger.Debug("Initializing registry from configuration")

	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	reg := registry.NewRegistry()

	if err := registerTrees(reg, cfg.Trees); err != nil {
		return nil, fmt.Errorf("failed to register trees: %w", err)
	}
	logger.Debug("Registered %d tree(s)", len(cfg.Trees))

	if err := registerStorages(ctx, reg, cfg.Storages); err != nil {
		if closeErr := reg.Close(); closeErr != nil {
			logger.Warn("Closing storages after failed initialization: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to register storages: %w", err)
	}
	logger.Debug("Registered %d storage(s)", reg.CountStorages())

	return reg, nil
}

// registerTrees registers real trees before the virtual trees referring to them.
func registerTrees(reg *registry.Registry, trees []TreeConfig) error {
	for _, virtual := range []bool{false, true} {
		for _, t := range trees {
			if t.Virtual != virtual {
				continue
			}
			tree := folder.Tree{ID: t.ID, Name: t.Name, Virtual: t.Virtual, RealTreeID: t.RealTree}
			if err := reg.RegisterTree(tree); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerStorages creates, seeds and registers all configured storages.
func registerStorages(ctx context.Context, reg *registry.Registry, storages []StorageConfig) error {
	for _, storageCfg := range storages {
		logger.Debug("Creating storage %q (type: %s)", storageCfg.Name, storageCfg.Type)

		s, err := CreateStorage(ctx, storageCfg)
		if err != nil {
			return fmt.Errorf("failed to create storage %q: %w", storageCfg.Name, err)
		}

		if err := reg.RegisterStorage(s); err != nil {
			if c, ok := s.(io.Closer); ok {
				_ = c.Close()
			}
			return fmt.Errorf("failed to register storage %q: %w", storageCfg.Name, err)
		}

		if storageCfg.Seed {
			if err := seedSystemFolders(ctx, s, storageCfg.Scope.TreeIDs); err != nil {
				return fmt.Errorf("failed to seed storage %q: %w", storageCfg.Name, err)
			}
		}

		logger.Debug("Storage %q registered successfully", storageCfg.Name)
	}
	return nil
}

// seedSystemFolders stores the system folders of every tree whose root is
// missing from s.
func seedSystemFolders(ctx context.Context, s folder.Storage, treeIDs []string) error {
	sd, ok := s.(seeder)
	if !ok {
		logger.Warn("Storage %s cannot be seeded, ignoring seed option", s.Name())
		return nil
	}

	params := folder.NewStorageParameters(nil)
	for _, treeID := range treeIDs {
		_, err := s.GetFolder(ctx, treeID, folder.RootID, params)
		if err == nil {
			continue
		}
		if !folder.IsCode(err, folder.ErrNotFound) {
			return err
		}
		if err := sd.Seed(ctx, folder.SystemFolders(treeID, time.Now().UTC())...); err != nil {
			return err
		}
		logger.Info("Seeded system folders of tree %s in storage %s", treeID, s.Name())
	}
	return nil
}

// NewService creates the folder service of a configured registry.
//
// Parameters:
//   - cfg: Complete configuration
//   - reg: Registry returned by InitializeRegistry
//   - m: Performer metrics (nil = no metrics)
//
// Returns:
//   - *performer.Service: Service using the ACL permission calculator
//   - error: Invalid performer configuration
func NewService(cfg *Config, reg *registry.Registry, m metrics.PerformerMetrics) (*performer.Service, error) {
	opts := performer.Options{
		WorkerPoolSize: cfg.Performer.WorkerPoolSize,
		ReservedNames:  cfg.Performer.ReservedNames,
		Metrics:        m,
	}
	for _, s := range cfg.Performer.AllowedContentTypes {
		ct, err := folder.ParseContentType(s)
		if err != nil {
			return nil, fmt.Errorf("performer: %w", err)
		}
		opts.AllowedContentTypes = append(opts.AllowedContentTypes, ct)
	}
	return performer.NewService(reg, permission.NewACLCalculator(), opts)
}
