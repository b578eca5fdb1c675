// Package engine implements folder.Storage on top of a small transactional
// record Backend. The concrete storages of this repository (memory, badger,
// s3, postgres, mongo) only provide a Backend and share the folder semantics
// implemented here.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/metrics"
)

// Options configures an engine Store.
type Options struct {
	// Name is the unique storage name.
	Name string

	// Scope declares the trees and folder ids served.
	Scope folder.Scope

	// ContentTypes lists the supported content types. Empty = all.
	ContentTypes []folder.ContentType

	// DefaultContentType is used for folders created without one.
	// Default: the first supported content type, or unbound.
	DefaultContentType folder.ContentType

	// Priority is the sort rank of the storage's folders in merged listings.
	Priority int

	// DefaultFolders maps a content type to the id of its default folder.
	DefaultFolders map[folder.ContentType]string

	// TrashFolderID is the folder trashed folders are moved below.
	// Empty disables trashing.
	TrashFolderID string

	// NewID generates folder ids.
	NewID func() (string, error)

	// Metrics records backend calls. Nil disables them.
	Metrics metrics.StorageMetrics
}

// Store implements folder.Storage and its optional capabilities.
//
// Thread Safety:
// Store holds no per-operation state. The open backend transaction of an
// operation lives in the operation's StorageParameters, so one Store serves
// any number of concurrent operations.
type Store struct {
	opts    Options
	backend Backend
	txKey   string
}

var (
	_ folder.Storage              = (*Store)(nil)
	_ folder.TrashAware           = (*Store)(nil)
	_ folder.Searchable           = (*Store)(nil)
	_ folder.RestoreAware         = (*Store)(nil)
	_ folder.UserSharedEnumerator = (*Store)(nil)
	_ folder.VisibleEnumerator    = (*Store)(nil)
	_ folder.FolderPreparer       = (*Store)(nil)
)

// New creates a Store over backend.
func New(opts Options, backend Backend) (*Store, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("storage name is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("storage %q: backend is required", opts.Name)
	}
	if opts.NewID == nil {
		return nil, fmt.Errorf("storage %q: id generator is required", opts.Name)
	}
	if opts.DefaultContentType == "" {
		opts.DefaultContentType = folder.ContentUnbound
		if len(opts.ContentTypes) > 0 {
			opts.DefaultContentType = opts.ContentTypes[0]
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopStorageMetrics()
	}

	return &Store{
		opts:    opts,
		backend: backend,
		txKey:   "engine:" + opts.Name,
	}, nil
}

// Name implements folder.Storage.
func (s *Store) Name() string { return s.opts.Name }

// Scope implements folder.Storage.
func (s *Store) Scope() folder.Scope { return s.opts.Scope }

// SupportedContentTypes implements folder.Storage.
func (s *Store) SupportedContentTypes() []folder.ContentType { return s.opts.ContentTypes }

// DefaultContentType implements folder.Storage.
func (s *Store) DefaultContentType() folder.ContentType { return s.opts.DefaultContentType }

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Healthcheck verifies the backend is reachable by opening and discarding a
// read-only transaction.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.backend.Begin(ctx, false)
	if err != nil {
		return fmt.Errorf("storage %q: %w", s.opts.Name, err)
	}
	return tx.Rollback(ctx)
}

// StartTransaction implements folder.Storage. The transaction is kept in the
// parameters bag under a key private to this storage.
func (s *Store) StartTransaction(ctx context.Context, params *folder.StorageParameters, modify bool) (bool, error) {
	if _, ok := params.Parameter(s.txKey); ok {
		return false, nil
	}

	start := time.Now()
	tx, err := s.backend.Begin(ctx, modify)
	s.opts.Metrics.RecordStorageOperation("begin", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("storage %q: begin transaction: %w", s.opts.Name, err)
	}

	params.PutParameter(s.txKey, tx)
	logger.Debug("Storage %s: transaction started (modify=%t)", s.opts.Name, modify)
	return true, nil
}

// CommitTransaction implements folder.Storage.
func (s *Store) CommitTransaction(ctx context.Context, params *folder.StorageParameters) error {
	tx, ok := s.openTx(params)
	if !ok {
		return nil
	}
	params.RemoveParameter(s.txKey)

	start := time.Now()
	err := tx.Commit(ctx)
	s.opts.Metrics.RecordStorageOperation("commit", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("storage %q: commit: %w", s.opts.Name, err)
	}
	return nil
}

// Rollback implements folder.Storage.
func (s *Store) Rollback(ctx context.Context, params *folder.StorageParameters) error {
	tx, ok := s.openTx(params)
	if !ok {
		return nil
	}
	params.RemoveParameter(s.txKey)

	start := time.Now()
	err := tx.Rollback(ctx)
	s.opts.Metrics.RecordStorageOperation("rollback", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("storage %q: rollback: %w", s.opts.Name, err)
	}
	return nil
}

func (s *Store) openTx(params *folder.StorageParameters) (Tx, bool) {
	v, ok := params.Parameter(s.txKey)
	if !ok {
		return nil, false
	}
	tx, ok := v.(Tx)
	return tx, ok
}

// read runs fn inside the operation's transaction, or inside a short
// read-only transaction when none is open.
func (s *Store) read(ctx context.Context, params *folder.StorageParameters, fn func(Tx) error) error {
	return s.within(ctx, params, false, fn)
}

// write runs fn inside the operation's transaction, or inside a short
// transaction committed immediately when none is open.
func (s *Store) write(ctx context.Context, params *folder.StorageParameters, fn func(Tx) error) error {
	return s.within(ctx, params, true, fn)
}

func (s *Store) within(ctx context.Context, params *folder.StorageParameters, modify bool, fn func(Tx) error) error {
	if tx, ok := s.openTx(params); ok {
		return fn(tx)
	}

	tx, err := s.backend.Begin(ctx, modify)
	if err != nil {
		return fmt.Errorf("storage %q: begin transaction: %w", s.opts.Name, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Warn("Storage %s: rollback failed: %v", s.opts.Name, rbErr)
		}
		return err
	}
	if !modify {
		return tx.Rollback(ctx)
	}
	return tx.Commit(ctx)
}

// observe records the duration and outcome of a backend operation.
func (s *Store) observe(op string, start time.Time, err error) {
	s.opts.Metrics.RecordStorageOperation(op, time.Since(start), err)
}

// now returns the operation timestamp, falling back to the wall clock.
func now(params *folder.StorageParameters) time.Time {
	if t := params.Timestamp(); !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}
