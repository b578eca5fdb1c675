package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/store/engine"
	"github.com/marmos91/dittofolders/pkg/store/memory"
	"github.com/marmos91/dittofolders/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T, opts engine.Options) *engine.Store {
			s, err := memory.New(opts, memory.Config{})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}

func TestMemoryStore_IDs(t *testing.T) {
	s, err := memory.New(storetest.Options("ids"), memory.Config{FirstID: 500, IDPrefix: "m"})
	require.NoError(t, err)

	p := folder.NewStorageParameters(&folder.Session{UserID: 1})
	f := &folder.Folder{TreeID: storetest.Tree, ParentID: folder.PrivateID, Name: "A"}
	require.NoError(t, s.CreateFolder(context.Background(), f, p))
	assert.Equal(t, "m500", f.ID)
	assert.Equal(t, folder.ContentUnbound, f.ContentType)
}

func TestMemoryStore_ConcurrentTransactions(t *testing.T) {
	ctx := context.Background()
	s, err := memory.New(storetest.Options("concurrent"), memory.Config{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := folder.NewStorageParameters(&folder.Session{UserID: 1})
			_, err := s.StartTransaction(ctx, p, true)
			assert.NoError(t, err)
			f := &folder.Folder{TreeID: storetest.Tree, ParentID: folder.PrivateID, Name: "Parallel"}
			assert.NoError(t, s.CreateFolder(ctx, f, p))
			assert.NoError(t, s.CommitTransaction(ctx, p))
		}()
	}
	wg.Wait()

	ids, err := s.GetSubfolders(ctx, storetest.Tree, folder.PrivateID, folder.NewStorageParameters(nil))
	require.NoError(t, err)
	assert.Len(t, ids, 16)
}

func TestNewVirtualTree(t *testing.T) {
	s, err := memory.NewVirtualTree(context.Background(), "virtual", folder.VirtualTreeID)
	require.NoError(t, err)

	root, err := s.GetFolder(context.Background(), folder.VirtualTreeID, folder.RootID, folder.NewStorageParameters(nil))
	require.NoError(t, err)
	assert.Equal(t, folder.TypeSystem, root.Type)
	assert.True(t, root.LastModified.Before(time.Now().Add(time.Second)))
	assert.True(t, s.Scope().ServesTree(folder.VirtualTreeID))
}
