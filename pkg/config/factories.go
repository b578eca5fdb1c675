package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/store/badger"
	"github.com/marmos91/dittofolders/pkg/store/engine"
	"github.com/marmos91/dittofolders/pkg/store/mail"
	"github.com/marmos91/dittofolders/pkg/store/memory"
	"github.com/marmos91/dittofolders/pkg/store/mongo"
	"github.com/marmos91/dittofolders/pkg/store/postgres"
	"github.com/marmos91/dittofolders/pkg/store/s3"
)

// s3Options combines the client settings and the bucket layout of an s3
// storage entry.
type s3Options struct {
	s3.ClientConfig `mapstructure:",squash"`

	Bucket    string `mapstructure:"bucket" validate:"required"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// CreateStorage creates a storage based on configuration.
//
// This factory function uses the Type field to determine which storage
// implementation to create, then decodes the type-specific options map and
// passes it to the storage's constructor.
//
// Supported types:
//   - "memory": pkg/store/memory (transactional in-memory storage)
//   - "badger": pkg/store/badger (BadgerDB database)
//   - "mail": pkg/store/mail (mail account mailboxes)
//   - "s3": pkg/store/s3 (Amazon S3 or compatible object store)
//   - "postgres": pkg/store/postgres (PostgreSQL through pgx)
//   - "mongo": pkg/store/mongo (MongoDB)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Storage configuration
//
// Returns:
//   - folder.Storage: Initialized storage
//   - error: Configuration or initialization error
func CreateStorage(ctx context.Context, cfg StorageConfig) (folder.Storage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Type == "mail" {
		return createMailStorage(cfg)
	}

	opts, err := engineOptions(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		var storeCfg memory.Config
		if err := decodeOptions(cfg, &storeCfg); err != nil {
			return nil, err
		}
		return storage(memory.New(opts, storeCfg))

	case "badger":
		var storeCfg badger.Config
		if err := decodeOptions(cfg, &storeCfg); err != nil {
			return nil, err
		}
		return storage(badger.New(ctx, opts, storeCfg))

	case "s3":
		return createS3Storage(ctx, cfg, opts)

	case "postgres":
		var storeCfg postgres.Config
		if err := decodeOptions(cfg, &storeCfg); err != nil {
			return nil, err
		}
		return storage(postgres.New(ctx, opts, storeCfg))

	case "mongo":
		var storeCfg mongo.Config
		if err := decodeOptions(cfg, &storeCfg); err != nil {
			return nil, err
		}
		return storage(mongo.New(ctx, opts, storeCfg))

	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// decodeOptions decodes and validates the type-specific options of cfg.
func decodeOptions(cfg StorageConfig, out any) error {
	if err := mapstructure.Decode(cfg.Options, out); err != nil {
		return fmt.Errorf("invalid %s options for storage %q: %w", cfg.Type, cfg.Name, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("storage %q: %w", cfg.Name, formatValidationError(err))
	}
	return nil
}

// engineOptions converts the type-independent settings of cfg.
func engineOptions(cfg StorageConfig) (engine.Options, error) {
	opts := engine.Options{
		Name:          cfg.Name,
		Scope:         cfg.Scope,
		Priority:      cfg.Priority,
		TrashFolderID: cfg.TrashFolderID,
	}

	for _, s := range cfg.ContentTypes {
		ct, err := folder.ParseContentType(s)
		if err != nil {
			return engine.Options{}, fmt.Errorf("storage %q: %w", cfg.Name, err)
		}
		opts.ContentTypes = append(opts.ContentTypes, ct)
	}

	if cfg.DefaultContentType != "" {
		ct, err := folder.ParseContentType(cfg.DefaultContentType)
		if err != nil {
			return engine.Options{}, fmt.Errorf("storage %q: %w", cfg.Name, err)
		}
		opts.DefaultContentType = ct
	}

	if len(cfg.DefaultFolders) > 0 {
		opts.DefaultFolders = make(map[folder.ContentType]string, len(cfg.DefaultFolders))
		for s, id := range cfg.DefaultFolders {
			ct, err := folder.ParseContentType(s)
			if err != nil {
				return engine.Options{}, fmt.Errorf("storage %q: default folder: %w", cfg.Name, err)
			}
			opts.DefaultFolders[ct] = id
		}
	}

	return opts, nil
}

// createMailStorage creates a mail account storage.
func createMailStorage(cfg StorageConfig) (folder.Storage, error) {
	var storeCfg mail.Config
	if err := decodeOptions(cfg, &storeCfg); err != nil {
		return nil, err
	}
	return storage(mail.New(mail.Options{
		Name:     cfg.Name,
		TreeIDs:  cfg.Scope.TreeIDs,
		Priority: cfg.Priority,
	}, storeCfg))
}

// createS3Storage creates an object-store storage.
func createS3Storage(ctx context.Context, cfg StorageConfig, opts engine.Options) (folder.Storage, error) {
	var storeCfg s3Options
	if err := decodeOptions(cfg, &storeCfg); err != nil {
		return nil, err
	}

	client, err := s3.NewClient(ctx, storeCfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("storage %q: failed to create S3 client: %w", cfg.Name, err)
	}

	return storage(s3.New(opts, s3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	}))
}

// storage converts a constructor result without producing a non-nil
// interface around a nil pointer.
func storage[S folder.Storage](s S, err error) (folder.Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
