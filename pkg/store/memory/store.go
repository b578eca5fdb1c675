// Package memory provides a transactional in-memory folder storage.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/store/engine"
)

// Config contains the memory-specific storage options.
type Config struct {
	// FirstID is the first numeric id handed out to created folders.
	// Default: 100
	FirstID int64 `mapstructure:"first_id"`

	// IDPrefix is prepended to generated ids (e.g. "m:").
	IDPrefix string `mapstructure:"id_prefix"`
}

type key struct {
	tree string
	id   string
}

// Backend implements engine.Backend using in-memory maps.
//
// Thread Safety:
// Committed state is protected by a single read-write mutex. Transactions
// buffer their writes and apply them atomically on commit, so concurrent
// readers never observe half-applied changes.
type Backend struct {
	// mu protects records and tombstones.
	mu sync.RWMutex

	// records maps tree+id to the committed record.
	records map[key]*engine.Record

	// tombstones maps tree+id to the deletion time.
	tombstones map[key]time.Time
}

// NewBackend creates an empty Backend.
func NewBackend() *Backend {
	return &Backend{
		records:    make(map[key]*engine.Record),
		tombstones: make(map[key]time.Time),
	}
}

// New creates a memory storage. opts.NewID defaults to a counter starting
// at cfg.FirstID.
func New(opts engine.Options, cfg Config) (*engine.Store, error) {
	if opts.NewID == nil {
		first := cfg.FirstID
		if first <= 0 {
			first = 100
		}
		var next atomic.Int64
		next.Store(first - 1)
		prefix := cfg.IDPrefix
		opts.NewID = func() (string, error) {
			return fmt.Sprintf("%s%d", prefix, next.Add(1)), nil
		}
	}
	return engine.New(opts, NewBackend())
}

// Begin implements engine.Backend.
func (b *Backend) Begin(_ context.Context, modify bool) (engine.Tx, error) {
	return &tx{
		b:      b,
		modify: modify,
		puts:   make(map[key]*engine.Record),
		dels:   make(map[key]time.Time),
	}, nil
}

// Close implements engine.Backend.
func (b *Backend) Close() error {
	return nil
}

// tx buffers writes until commit. Reads look at the buffer first.
type tx struct {
	b      *Backend
	modify bool
	done   bool
	puts   map[key]*engine.Record
	dels   map[key]time.Time
}

func (t *tx) check(write bool) error {
	if t.done {
		return fmt.Errorf("transaction already terminated")
	}
	if write && !t.modify {
		return fmt.Errorf("write in read-only transaction")
	}
	return nil
}

func (t *tx) Get(_ context.Context, treeID, id string) (*engine.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	k := key{treeID, id}
	if _, ok := t.dels[k]; ok {
		return nil, engine.ErrNoRecord
	}
	if r, ok := t.puts[k]; ok {
		return r.Clone(), nil
	}

	t.b.mu.RLock()
	defer t.b.mu.RUnlock()
	r, ok := t.b.records[k]
	if !ok {
		return nil, engine.ErrNoRecord
	}
	return r.Clone(), nil
}

func (t *tx) Put(_ context.Context, treeID string, rec *engine.Record) error {
	if err := t.check(true); err != nil {
		return err
	}
	k := key{treeID, rec.Folder.ID}
	delete(t.dels, k)
	t.puts[k] = rec.Clone()
	return nil
}

func (t *tx) Delete(_ context.Context, treeID, id string, deletedAt time.Time) error {
	if err := t.check(true); err != nil {
		return err
	}
	k := key{treeID, id}
	delete(t.puts, k)
	t.dels[k] = deletedAt
	return nil
}

func (t *tx) Scan(_ context.Context, treeID string) ([]*engine.Record, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	t.b.mu.RLock()
	out := make([]*engine.Record, 0, len(t.b.records))
	for k, r := range t.b.records {
		if k.tree != treeID {
			continue
		}
		if _, deleted := t.dels[k]; deleted {
			continue
		}
		if _, replaced := t.puts[k]; replaced {
			continue
		}
		out = append(out, r.Clone())
	}
	t.b.mu.RUnlock()

	for k, r := range t.puts {
		if k.tree == treeID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (t *tx) Tombstones(_ context.Context, treeID string, since time.Time) ([]string, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(k key, at time.Time) {
		if k.tree == treeID && at.After(since) && !seen[k.id] {
			seen[k.id] = true
			out = append(out, k.id)
		}
	}

	t.b.mu.RLock()
	for k, at := range t.b.tombstones {
		if _, revived := t.puts[k]; !revived {
			add(k, at)
		}
	}
	t.b.mu.RUnlock()

	for k, at := range t.dels {
		add(k, at)
	}
	return out, nil
}

func (t *tx) HasTombstone(_ context.Context, treeID, id string) (bool, error) {
	if err := t.check(false); err != nil {
		return false, err
	}
	k := key{treeID, id}
	if _, ok := t.dels[k]; ok {
		return true, nil
	}
	if _, ok := t.puts[k]; ok {
		return false, nil
	}

	t.b.mu.RLock()
	defer t.b.mu.RUnlock()
	_, ok := t.b.tombstones[k]
	return ok, nil
}

func (t *tx) Commit(_ context.Context) error {
	if err := t.check(false); err != nil {
		return err
	}
	t.done = true
	if len(t.puts) == 0 && len(t.dels) == 0 {
		return nil
	}

	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	for k, r := range t.puts {
		t.b.records[k] = r
		delete(t.b.tombstones, k)
	}
	for k, at := range t.dels {
		delete(t.b.records, k)
		t.b.tombstones[k] = at
	}
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already terminated")
	}
	t.done = true
	t.puts = nil
	t.dels = nil
	return nil
}

// NewVirtualTree creates the memory storage of a virtual tree, seeded with
// the tree's system folders.
func NewVirtualTree(ctx context.Context, name, treeID string) (*engine.Store, error) {
	s, err := New(engine.Options{
		Name:  name,
		Scope: folder.Scope{TreeIDs: []string{treeID}, CatchAll: true},
	}, Config{IDPrefix: "v"})
	if err != nil {
		return nil, err
	}
	if err := s.Seed(ctx, folder.SystemFolders(treeID, time.Now().UTC())...); err != nil {
		return nil, err
	}
	return s, nil
}
