package performer

import (
	"context"
	"fmt"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/metrics"
)

type txState int

const (
	txOpen txState = iota
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txCommitted:
		return "committed"
	case txRolledBack:
		return "rolled back"
	default:
		return "open"
	}
}

type openedStorage struct {
	storage folder.Storage
	state   txState
}

// OpenedStorages tracks the storages whose transaction was started during
// one logical operation and terminates each of them exactly once.
//
// Lifecycle:
//   - OpenIfNeeded starts a transaction on a storage not tracked yet. Only
//     storages reporting a new transaction are tracked.
//   - CommitAll or RollbackAll ends every transaction still open.
//
// Entries never change state twice, so calling RollbackAll after a failed
// CommitAll only rolls back the storages CommitAll did not reach.
//
// OpenedStorages is not safe for concurrent use. Fan-out tasks keep their
// own instance.
type OpenedStorages struct {
	params  *folder.StorageParameters
	metrics metrics.PerformerMetrics
	entries []*openedStorage
}

// NewOpenedStorages creates an empty set bound to the operation parameters.
// A nil m disables metrics.
func NewOpenedStorages(params *folder.StorageParameters, m metrics.PerformerMetrics) *OpenedStorages {
	if m == nil {
		m = metrics.NewNoopPerformerMetrics()
	}
	return &OpenedStorages{params: params, metrics: m}
}

// Params returns the parameters the transactions were started with.
func (o *OpenedStorages) Params() *folder.StorageParameters {
	return o.params
}

// OpenIfNeeded starts a transaction on s unless s is already tracked.
//
// Parameters:
//   - s: Storage about to be used by the operation
//   - modify: Whether the operation will write through s
//
// Returns:
//   - bool: true if a transaction was started and s is now tracked
//   - error: Failure of StartTransaction
func (o *OpenedStorages) OpenIfNeeded(ctx context.Context, s folder.Storage, modify bool) (bool, error) {
	if o.tracked(s) {
		return false, nil
	}
	started, err := s.StartTransaction(ctx, o.params, modify)
	if err != nil {
		return false, fmt.Errorf("start transaction on storage %q: %w", s.Name(), err)
	}
	if started {
		o.entries = append(o.entries, &openedStorage{storage: s, state: txOpen})
	}
	return started, nil
}

func (o *OpenedStorages) tracked(s folder.Storage) bool {
	for _, e := range o.entries {
		if e.storage == s {
			return true
		}
	}
	return false
}

// CommitAll commits every open transaction in opening order. The first
// failure stops the commits and is returned; the storages not reached yet
// are rolled back. Storages committed before the failure stay committed.
func (o *OpenedStorages) CommitAll(ctx context.Context) error {
	for i, e := range o.entries {
		if e.state != txOpen {
			continue
		}
		err := e.storage.CommitTransaction(ctx, o.params)
		e.state = txCommitted
		if err != nil {
			o.metrics.RecordTermination(e.storage.Name(), "commit_failed")
			logger.Error("Commit on storage %s failed: %v", e.storage.Name(), err)
			o.rollbackFrom(ctx, i+1)
			return fmt.Errorf("commit storage %q: %w", e.storage.Name(), err)
		}
		o.metrics.RecordTermination(e.storage.Name(), "commit")
	}
	return nil
}

// RollbackAll rolls back every transaction still open. Failures are logged
// and never returned, so that they cannot mask the error that caused the
// rollback.
func (o *OpenedStorages) RollbackAll(ctx context.Context) {
	o.rollbackFrom(ctx, 0)
}

func (o *OpenedStorages) rollbackFrom(ctx context.Context, start int) {
	for _, e := range o.entries[start:] {
		if e.state != txOpen {
			continue
		}
		err := e.storage.Rollback(ctx, o.params)
		e.state = txRolledBack
		if err != nil {
			o.metrics.RecordTermination(e.storage.Name(), "rollback_failed")
			logger.Warn("Rollback on storage %s failed: %v", e.storage.Name(), err)
			continue
		}
		o.metrics.RecordTermination(e.storage.Name(), "rollback")
	}
}

// Len returns the number of tracked storages.
func (o *OpenedStorages) Len() int {
	return len(o.entries)
}

// Open returns the number of tracked storages not terminated yet.
func (o *OpenedStorages) Open() int {
	n := 0
	for _, e := range o.entries {
		if e.state == txOpen {
			n++
		}
	}
	return n
}
