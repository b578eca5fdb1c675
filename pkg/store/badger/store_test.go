package badger_test

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
	badgerstore "github.com/marmos91/dittofolders/pkg/store/badger"
	"github.com/marmos91/dittofolders/pkg/store/engine"
	"github.com/marmos91/dittofolders/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T, opts engine.Options) *engine.Store {
			s, err := badgerstore.New(context.Background(), opts, badgerstore.Config{DBPath: t.TempDir()})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	suite.Run(t)
}

func TestBadgerStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := storetest.Options("persistent")

	s, err := badgerstore.New(ctx, opts, badgerstore.Config{DBPath: dir, NodeID: 3})
	require.NoError(t, err)

	p := folder.NewStorageParameters(&folder.Session{UserID: 5})
	p.SetTimestamp(time.Now().UTC())
	f := &folder.Folder{TreeID: storetest.Tree, ParentID: folder.PrivateID, Name: "Kept", ContentType: folder.ContentTasks, Type: folder.TypePrivate}
	require.NoError(t, s.CreateFolder(ctx, f, p))
	require.NoError(t, s.DeleteFolder(ctx, storetest.Tree, f.ID, p))
	g := &folder.Folder{TreeID: storetest.Tree, ParentID: folder.PrivateID, Name: "Survivor", ContentType: folder.ContentTasks, Type: folder.TypePrivate}
	require.NoError(t, s.CreateFolder(ctx, g, p))
	require.NoError(t, s.Close())

	reopened, err := badgerstore.New(ctx, opts, badgerstore.Config{DBPath: dir, NodeID: 3})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetFolder(ctx, storetest.Tree, g.ID, folder.NewStorageParameters(nil))
	require.NoError(t, err)
	assert.Equal(t, "Survivor", got.Name)
	assert.Equal(t, 5, got.CreatedBy)

	ok, err := reopened.ContainsFolder(ctx, storetest.Tree, f.ID, folder.KindBackup, folder.NewStorageParameters(nil))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := badgerstore.New(context.Background(), storetest.Options("mem"), badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ids, err := s.GetSubfolders(context.Background(), storetest.Tree, folder.PrivateID, folder.NewStorageParameters(nil))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBadgerStore_InvalidNode(t *testing.T) {
	_, err := badgerstore.New(context.Background(), storetest.Options("bad"), badgerstore.Config{InMemory: true, NodeID: 4096})
	assert.Error(t, err)
}
