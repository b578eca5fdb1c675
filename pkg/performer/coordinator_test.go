package performer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// txStorage only implements the transaction calls.
type txStorage struct {
	folder.Storage
	name      string
	reuse     bool
	startErr  error
	commitErr error
	log       *callLog
}

func (s *txStorage) Name() string { return s.name }

func (s *txStorage) StartTransaction(context.Context, *folder.StorageParameters, bool) (bool, error) {
	if s.startErr != nil {
		return false, s.startErr
	}
	return !s.reuse, nil
}

func (s *txStorage) CommitTransaction(context.Context, *folder.StorageParameters) error {
	s.log.add("%s:commit", s.name)
	return s.commitErr
}

func (s *txStorage) Rollback(context.Context, *folder.StorageParameters) error {
	s.log.add("%s:rollback", s.name)
	return errInjected
}

func TestOpenIfNeeded(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	o := NewOpenedStorages(folder.NewStorageParameters(&folder.Session{UserID: 1}), nil)

	a := &txStorage{name: "a", log: log}
	started, err := o.OpenIfNeeded(ctx, a, true)
	require.NoError(t, err)
	assert.True(t, started)

	started, err = o.OpenIfNeeded(ctx, a, true)
	require.NoError(t, err)
	assert.False(t, started)

	shared := &txStorage{name: "shared", reuse: true, log: log}
	started, err = o.OpenIfNeeded(ctx, shared, false)
	require.NoError(t, err)
	assert.False(t, started)

	_, err = o.OpenIfNeeded(ctx, &txStorage{name: "down", startErr: errInjected, log: log}, false)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, 1, o.Len())
	assert.Equal(t, 1, o.Open())
	require.NoError(t, o.CommitAll(ctx))
	assert.Equal(t, []string{"a:commit"}, log.snapshot())
	assert.Zero(t, o.Open())
}

func TestCommitAllStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	o := NewOpenedStorages(folder.NewStorageParameters(nil), nil)
	for _, s := range []*txStorage{
		{name: "a", log: log},
		{name: "b", commitErr: errInjected, log: log},
		{name: "c", log: log},
	} {
		_, err := o.OpenIfNeeded(ctx, s, true)
		require.NoError(t, err)
	}

	err := o.CommitAll(ctx)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, []string{"a:commit", "b:commit", "c:rollback"}, log.snapshot())

	// Every entry is terminated already.
	o.RollbackAll(ctx)
	require.NoError(t, o.CommitAll(ctx))
	assert.Len(t, log.snapshot(), 3)
	assert.Zero(t, o.Open())
}

func TestRollbackAllSwallowsFailures(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	o := NewOpenedStorages(folder.NewStorageParameters(nil), nil)
	for _, name := range []string{"a", "b"} {
		_, err := o.OpenIfNeeded(ctx, &txStorage{name: name, log: log}, false)
		require.NoError(t, err)
	}

	o.RollbackAll(ctx)
	assert.Equal(t, []string{"a:rollback", "b:rollback"}, log.snapshot())
	assert.Equal(t, 2, o.Len())
	assert.Zero(t, o.Open())
	assert.NotNil(t, o.Params())
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "open", txOpen.String())
	assert.Equal(t, "committed", txCommitted.String())
	assert.Equal(t, "rolled back", txRolledBack.String())
}
