// Package storetest is a conformance suite for folder storages built on the
// storage engine. It tests the folder.Storage contract, not backend details,
// so it is shared by every backend (memory, badger, s3, postgres, mongo).
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/store/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tree is the tree the suite works in.
const Tree = folder.RealTreeID

// TrashID is the id of the trash folder seeded by the suite.
const TrashID = "trash"

// StoreTestSuite runs the conformance tests.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func(t *testing.T, opts engine.Options) *engine.Store {
//	            return mystore.New(opts)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty storage for each test with the given
	// options.
	NewStore func(t *testing.T, opts engine.Options) *engine.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("CRUD", suite.RunCRUDTests)
	t.Run("Transactions", suite.RunTransactionTests)
	t.Run("Queries", suite.RunQueryTests)
	t.Run("Trash", suite.RunTrashTests)
}

// Options returns the storage options used by the suite.
func Options(name string) engine.Options {
	return engine.Options{
		Name:          name,
		Scope:         folder.Scope{TreeIDs: []string{Tree}, CatchAll: true},
		TrashFolderID: TrashID,
		DefaultFolders: map[folder.ContentType]string{
			folder.ContentCalendar: "cal-default",
		},
	}
}

// newSeededStore returns a storage holding the system folders, the trash and
// a private folder "10" owned by user 7.
func (suite *StoreTestSuite) newSeededStore(t *testing.T) *engine.Store {
	t.Helper()
	s := suite.NewStore(t, Options("conformance"))
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := folder.SystemFolders(Tree, ts)
	seed = append(seed,
		&folder.Folder{
			ID: TrashID, TreeID: Tree, ParentID: folder.PrivateID, Name: "Trash",
			ContentType: folder.ContentInfostore, Type: folder.TypeTrash, CreatedBy: 7,
			CreationDate: ts, LastModified: ts,
			Permissions: []folder.Permission{folder.OwnerPermission(7)},
		},
		&folder.Folder{
			ID: "10", TreeID: Tree, ParentID: folder.PrivateID, Name: "Work",
			ContentType: folder.ContentCalendar, Type: folder.TypePrivate, CreatedBy: 7,
			CreationDate: ts, LastModified: ts,
			Permissions: []folder.Permission{folder.OwnerPermission(7)},
		},
	)
	require.NoError(t, s.Seed(context.Background(), seed...))
	return s
}

func params(user int) *folder.StorageParameters {
	p := folder.NewStorageParameters(&folder.Session{UserID: user})
	p.SetTimestamp(time.Now().UTC())
	return p
}

func createFolder(t *testing.T, s *engine.Store, p *folder.StorageParameters, parent, name string) string {
	t.Helper()
	f := &folder.Folder{
		TreeID:      Tree,
		ParentID:    parent,
		Name:        name,
		ContentType: folder.ContentCalendar,
		Type:        folder.TypePrivate,
		Permissions: []folder.Permission{folder.OwnerPermission(p.UserID())},
	}
	require.NoError(t, s.CreateFolder(context.Background(), f, p))
	require.NotEmpty(t, f.ID)
	return f.ID
}

// RunCRUDTests covers create, get, update and delete.
func (suite *StoreTestSuite) RunCRUDTests(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		id := createFolder(t, s, p, "10", "Projects")

		f, err := s.GetFolder(ctx, Tree, id, p)
		require.NoError(t, err)
		assert.Equal(t, "Projects", f.Name)
		assert.Equal(t, "10", f.ParentID)
		assert.Equal(t, folder.ContentCalendar, f.ContentType)
		assert.Equal(t, 7, f.CreatedBy)
		assert.NotNil(t, f.SubfolderIDs)
		assert.Empty(t, f.SubfolderIDs)

		parent, err := s.GetFolder(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.Equal(t, []string{id}, parent.SubfolderIDs)
	})

	t.Run("SystemFoldersAreDynamic", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)

		root, err := s.GetFolder(ctx, Tree, folder.RootID, p)
		require.NoError(t, err)
		assert.Equal(t, []string{folder.PrivateID, folder.PublicID, folder.SharedID, folder.InfostoreID}, root.SubfolderIDs)

		private, err := s.GetFolder(ctx, Tree, folder.PrivateID, p)
		require.NoError(t, err)
		assert.Nil(t, private.SubfolderIDs)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := suite.newSeededStore(t)
		_, err := s.GetFolder(ctx, Tree, "404", params(7))
		require.Error(t, err)
		assert.True(t, folder.IsNotFound(err))
	})

	t.Run("GetFoldersKeepsOrder", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		a := createFolder(t, s, p, "10", "A")
		b := createFolder(t, s, p, "10", "B")

		got, err := s.GetFolders(ctx, Tree, []string{b, "10", a}, p)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, b, got[0].ID)
		assert.Equal(t, "10", got[1].ID)
		assert.Equal(t, a, got[2].ID)

		_, err = s.GetFolders(ctx, Tree, []string{a, "404"}, p)
		assert.True(t, folder.IsNotFound(err))
	})

	t.Run("Update", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		id := createFolder(t, s, p, "10", "Old")

		f, err := s.GetFolder(ctx, Tree, id, p)
		require.NoError(t, err)
		f.Name = "New"
		f.ParentID = folder.PrivateID
		f.Subscribed = true
		require.NoError(t, s.UpdateFolder(ctx, f, p))

		got, err := s.GetFolder(ctx, Tree, id, p)
		require.NoError(t, err)
		assert.Equal(t, "New", got.Name)
		assert.Equal(t, folder.PrivateID, got.ParentID)
		assert.True(t, got.Subscribed)

		parent, err := s.GetFolder(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.Empty(t, parent.SubfolderIDs)
	})

	t.Run("DeleteLeavesTombstone", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		before := time.Now().UTC().Add(-time.Minute)
		id := createFolder(t, s, p, "10", "Gone")

		require.NoError(t, s.DeleteFolder(ctx, Tree, id, p))

		ok, err := s.ContainsFolder(ctx, Tree, id, folder.KindWorking, p)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.ContainsFolder(ctx, Tree, id, folder.KindBackup, p)
		require.NoError(t, err)
		assert.True(t, ok)

		deleted, err := s.DeletedFolderIDs(ctx, Tree, before, p)
		require.NoError(t, err)
		assert.Contains(t, deleted, id)

		err = s.DeleteFolder(ctx, Tree, id, p)
		assert.True(t, folder.IsNotFound(err))
	})

	t.Run("ObjectsAndClear", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)

		empty, err := s.IsEmpty(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.True(t, empty)

		require.NoError(t, s.AddObject(ctx, Tree, "10", 7))
		foreign, err := s.ContainsForeignObjects(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.False(t, foreign)

		require.NoError(t, s.AddObject(ctx, Tree, "10", 8))
		foreign, err = s.ContainsForeignObjects(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.True(t, foreign)

		require.NoError(t, s.ClearFolder(ctx, Tree, "10", p))
		empty, err = s.IsEmpty(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.True(t, empty)
	})
}

// RunTransactionTests covers commit, rollback and isolation.
func (suite *StoreTestSuite) RunTransactionTests(t *testing.T) {
	ctx := context.Background()

	t.Run("StartTwice", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)

		started, err := s.StartTransaction(ctx, p, true)
		require.NoError(t, err)
		assert.True(t, started)

		started, err = s.StartTransaction(ctx, p, true)
		require.NoError(t, err)
		assert.False(t, started)

		require.NoError(t, s.Rollback(ctx, p))
	})

	t.Run("Commit", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)

		_, err := s.StartTransaction(ctx, p, true)
		require.NoError(t, err)
		id := createFolder(t, s, p, "10", "Pending")

		got, err := s.GetFolder(ctx, Tree, id, p)
		require.NoError(t, err)
		assert.Equal(t, "Pending", got.Name)

		_, err = s.GetFolder(ctx, Tree, id, params(7))
		assert.True(t, folder.IsNotFound(err), "uncommitted folder must not be visible outside the transaction")

		require.NoError(t, s.CommitTransaction(ctx, p))

		_, err = s.GetFolder(ctx, Tree, id, params(7))
		assert.NoError(t, err)
	})

	t.Run("Rollback", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)

		_, err := s.StartTransaction(ctx, p, true)
		require.NoError(t, err)
		id := createFolder(t, s, p, "10", "Discarded")
		require.NoError(t, s.DeleteFolder(ctx, Tree, "10", p))
		require.NoError(t, s.Rollback(ctx, p))

		_, err = s.GetFolder(ctx, Tree, id, params(7))
		assert.True(t, folder.IsNotFound(err))
		_, err = s.GetFolder(ctx, Tree, "10", params(7))
		assert.NoError(t, err)

		// Terminating twice is a no-op once the handle left the parameters.
		assert.NoError(t, s.Rollback(ctx, p))
	})
}

// RunQueryTests covers listing, search, defaults and change tracking.
func (suite *StoreTestSuite) RunQueryTests(t *testing.T) {
	ctx := context.Background()

	t.Run("Subfolders", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		b := createFolder(t, s, p, "10", "beta")
		a := createFolder(t, s, p, "10", "Alpha")

		ids, err := s.GetSubfolders(ctx, Tree, "10", p)
		require.NoError(t, err)
		assert.Equal(t, []string{a, b}, folder.IDs(ids))
	})

	t.Run("ModifiedSince", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		id := createFolder(t, s, p, "10", "Fresh")

		ids, err := s.ModifiedFolderIDs(ctx, Tree, since, nil, p)
		require.NoError(t, err)
		assert.Equal(t, []string{id}, ids)

		ids, err = s.ModifiedFolderIDs(ctx, Tree, since, []folder.ContentType{folder.ContentMail}, p)
		require.NoError(t, err)
		assert.Empty(t, ids)

		later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpdateLastModified(ctx, later, Tree, "10", p))
		ids, err = s.ModifiedFolderIDs(ctx, Tree, later.Add(-time.Second), nil, p)
		require.NoError(t, err)
		assert.Equal(t, []string{"10"}, ids)
	})

	t.Run("Search", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		child := createFolder(t, s, p, "10", "Project Alpha")
		grandchild := createFolder(t, s, p, child, "project beta")

		found, err := s.SearchByName(ctx, Tree, "10", "PROJECT", time.Time{}, true, p)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{child, grandchild}, ids(found))

		found, err = s.SearchByName(ctx, Tree, "10", "project", time.Time{}, false, p)
		require.NoError(t, err)
		assert.Equal(t, []string{child}, ids(found))
	})

	t.Run("DefaultFolder", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)

		_, err := s.DefaultFolderID(ctx, Tree, folder.ContentTasks, folder.TypePrivate, p)
		assert.True(t, folder.IsCode(err, folder.ErrNoDefaultFolder))

		f := &folder.Folder{
			ID: "cal-default", TreeID: Tree, ParentID: folder.PrivateID, Name: "Calendar",
			ContentType: folder.ContentCalendar, Type: folder.TypePrivate, Default: true,
		}
		require.NoError(t, s.CreateFolder(ctx, f, p))

		id, err := s.DefaultFolderID(ctx, Tree, folder.ContentCalendar, folder.TypePrivate, p)
		require.NoError(t, err)
		assert.Equal(t, "cal-default", id)
	})

	t.Run("SharedAndVisible", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		f := &folder.Folder{
			TreeID: Tree, ParentID: "10", Name: "Team",
			ContentType: folder.ContentCalendar, Type: folder.TypePrivate,
			Permissions: []folder.Permission{
				folder.OwnerPermission(7),
				{Entity: 8, Folder: folder.FolderVisible, Read: folder.ObjectAll},
			},
		}
		require.NoError(t, s.CreateFolder(ctx, f, p))

		shared, err := s.UserSharedFolderIDs(ctx, Tree, nil, p)
		require.NoError(t, err)
		assert.Equal(t, []string{f.ID}, folder.IDs(shared))

		other := params(8)
		visible, err := s.VisibleFolderIDs(ctx, Tree, folder.ContentCalendar, folder.TypeShared, other)
		require.NoError(t, err)
		assert.Contains(t, folder.IDs(visible), f.ID)

		loaded, err := s.GetFolder(ctx, Tree, f.ID, other)
		require.NoError(t, err)
		prepared, err := s.PrepareFolder(ctx, Tree, loaded, other)
		require.NoError(t, err)
		assert.Equal(t, folder.TypeShared, prepared.Type)
		assert.Equal(t, folder.SharedUserFolderID(7), prepared.ParentID)
	})

	t.Run("CheckConsistency", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		orphan := &folder.Folder{
			ID: "orphan", TreeID: Tree, ParentID: "missing", Name: "Orphan",
			ContentType: folder.ContentCalendar, Type: folder.TypePrivate, Subscribed: true,
		}
		require.NoError(t, s.Seed(ctx, orphan))
		require.NoError(t, s.CheckConsistency(ctx, Tree, p))

		got, err := s.GetFolder(ctx, Tree, "orphan", p)
		require.NoError(t, err)
		assert.Equal(t, folder.PrivateID, got.ParentID)
	})
}

// RunTrashTests covers trashing and restoring.
func (suite *StoreTestSuite) RunTrashTests(t *testing.T) {
	ctx := context.Background()

	t.Run("TrashAndRestore", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		id := createFolder(t, s, p, "10", "Old stuff")

		require.NoError(t, s.TrashFolder(ctx, Tree, id, p))
		got, err := s.GetFolder(ctx, Tree, id, p)
		require.NoError(t, err)
		assert.Equal(t, TrashID, got.ParentID)

		restored, err := s.RestoreFromTrash(ctx, Tree, []string{id}, "", p)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{id: "10"}, restored)
	})

	t.Run("RestoreToDefaultDestination", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		parent := createFolder(t, s, p, "10", "Parent")
		id := createFolder(t, s, p, parent, "Child")

		require.NoError(t, s.TrashFolder(ctx, Tree, id, p))
		require.NoError(t, s.DeleteFolder(ctx, Tree, parent, p))

		_, err := s.RestoreFromTrash(ctx, Tree, []string{id}, "", p)
		assert.True(t, folder.IsCode(err, folder.ErrMissingParameter))

		restored, err := s.RestoreFromTrash(ctx, Tree, []string{id}, "10", p)
		require.NoError(t, err)
		assert.Equal(t, "10", restored[id])
	})

	t.Run("TrashTwicePurges", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		id := createFolder(t, s, p, "10", "Twice")
		child := createFolder(t, s, p, id, "Inner")

		require.NoError(t, s.TrashFolder(ctx, Tree, id, p))
		require.NoError(t, s.TrashFolder(ctx, Tree, id, p))

		for _, gone := range []string{id, child} {
			ok, err := s.ContainsFolder(ctx, Tree, gone, folder.KindWorking, p)
			require.NoError(t, err)
			assert.False(t, ok, gone)
		}
	})

	t.Run("DuplicateNamesInTrash", func(t *testing.T) {
		s := suite.newSeededStore(t)
		p := params(7)
		a := createFolder(t, s, p, "10", "Notes")
		require.NoError(t, s.TrashFolder(ctx, Tree, a, p))
		b := createFolder(t, s, p, "10", "Notes")
		require.NoError(t, s.TrashFolder(ctx, Tree, b, p))

		got, err := s.GetFolder(ctx, Tree, b, p)
		require.NoError(t, err)
		assert.Equal(t, "Notes (2)", got.Name)
	})
}

func ids(folders []*folder.Folder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.ID
	}
	return out
}
