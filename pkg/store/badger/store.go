// Package badger provides a persistent folder storage on BadgerDB.
//
// Every storage operation runs inside a badger transaction. When the
// performers open a transaction through StartTransaction, the badger.Txn is
// kept in the operation's StorageParameters and committed or discarded by the
// transaction coordinator; otherwise each call runs in its own short txn.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittofolders/pkg/metrics"
	"github.com/marmos91/dittofolders/pkg/store/engine"
)

// Config contains the BadgerDB-specific storage options.
type Config struct {
	// DBPath is the directory of the database. Required unless InMemory.
	DBPath string `mapstructure:"db_path" validate:"required_without=InMemory"`

	// InMemory keeps the database in memory (tests, ephemeral setups).
	InMemory bool `mapstructure:"in_memory"`

	// NodeID is the snowflake node used to generate folder ids (0-1023).
	NodeID int64 `mapstructure:"node_id" validate:"gte=0,lte=1023"`

	// BlockCacheSizeMB sizes the block cache.
	// Default: 64
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB sizes the index cache.
	// Default: 32
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// Backend implements engine.Backend on a BadgerDB database.
type Backend struct {
	db *badger.DB
}

// Open opens (or creates) the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}

	opts = opts.
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(blockCacheMB << 20).
		WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}
	return &Backend{db: db}, nil
}

// New opens the database and returns a storage on top of it. Folder ids are
// snowflake ids unless opts.NewID is set.
func New(ctx context.Context, opts engine.Options, cfg Config) (*engine.Store, error) {
	if opts.NewID == nil {
		node, err := snowflake.NewNode(cfg.NodeID)
		if err != nil {
			return nil, fmt.Errorf("badger: snowflake node: %w", err)
		}
		opts.NewID = func() (string, error) {
			return node.Generate().String(), nil
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewStorageMetrics("badger")
	}

	backend, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := engine.New(opts, backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return store, nil
}

// Begin implements engine.Backend.
func (b *Backend) Begin(ctx context.Context, modify bool) (engine.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{txn: b.db.NewTransaction(modify)}, nil
}

// Close implements engine.Backend.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Get(_ context.Context, treeID, id string) (*engine.Record, error) {
	item, err := t.txn.Get(keyFolder(treeID, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, engine.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}

	var rec *engine.Record
	err = item.Value(func(val []byte) error {
		rec, err = engine.DecodeRecord(val)
		return err
	})
	return rec, err
}

func (t *tx) Put(_ context.Context, treeID string, rec *engine.Record) error {
	data, err := engine.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := t.txn.Set(keyFolder(treeID, rec.Folder.ID), data); err != nil {
		return err
	}
	if err := t.txn.Delete(keyTombstone(treeID, rec.Folder.ID)); err != nil {
		return err
	}
	return nil
}

func (t *tx) Delete(_ context.Context, treeID, id string, deletedAt time.Time) error {
	if err := t.txn.Delete(keyFolder(treeID, id)); err != nil {
		return err
	}
	return t.txn.Set(keyTombstone(treeID, id), encodeTime(deletedAt))
}

func (t *tx) Scan(_ context.Context, treeID string) ([]*engine.Record, error) {
	prefix := prefixFolders(treeID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []*engine.Record
	for it.Rewind(); it.Valid(); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			rec, err := engine.DecodeRecord(val)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) Tombstones(_ context.Context, treeID string, since time.Time) ([]string, error) {
	prefix := prefixTombstones(treeID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var at time.Time
		err := item.Value(func(val []byte) error {
			var err error
			at, err = decodeTime(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if at.After(since) {
			out = append(out, folderIDFromKey(item.KeyCopy(nil), prefix))
		}
	}
	return out, nil
}

func (t *tx) HasTombstone(_ context.Context, treeID, id string) (bool, error) {
	_, err := t.txn.Get(keyTombstone(treeID, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *tx) Commit(_ context.Context) error {
	return t.txn.Commit()
}

func (t *tx) Rollback(_ context.Context) error {
	t.txn.Discard()
	return nil
}
