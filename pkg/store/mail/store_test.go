package mail

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Name: "mail", TreeIDs: []string{folder.RealTreeID}}, Config{
		Mailboxes: []string{"Sent", "inbox/Projects"},
	})
	require.NoError(t, err)
	return s
}

func params() *folder.StorageParameters {
	return folder.NewStorageParameters(&folder.Session{UserID: 7})
}

func TestFolderIDs(t *testing.T) {
	id, err := FolderID(0, "INBOX/Entwürfe")
	require.NoError(t, err)
	assert.Equal(t, "default0/INBOX/Entw&APw-rfe", id)

	account, name, err := ParseFolderID(id)
	require.NoError(t, err)
	assert.Equal(t, 0, account)
	assert.Equal(t, "INBOX/Entwürfe", name)

	_, name, err = ParseFolderID("default3")
	require.NoError(t, err)
	assert.Empty(t, name)

	_, name, err = ParseFolderID("default0/inbox")
	require.NoError(t, err)
	assert.Equal(t, "INBOX", name)

	for _, bad := range []string{"42", "defaultx/INBOX", "default-1"} {
		_, _, err := ParseFolderID(bad)
		assert.Error(t, err, bad)
	}
}

func TestNameHelpers(t *testing.T) {
	assert.Equal(t, "INBOX", parentName("INBOX/Trash", "/"))
	assert.Equal(t, "", parentName("Sent", "/"))
	assert.Equal(t, "Trash", leafName("INBOX/Trash", "/"))
	assert.Equal(t, "b", leafName("a::b", "::"))
	assert.Equal(t, "INBOX/Sub", canonicalName("Inbox/Sub", "/"))
	assert.Equal(t, "Inboxes/Sub", canonicalName("Inboxes/Sub", "/"))
	assert.True(t, within("INBOX/Trash", "INBOX", "/"))
	assert.False(t, within("INBOXES", "INBOX", "/"))
}

func TestMailStore_Hierarchy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := params()

	started, err := s.StartTransaction(ctx, p, true)
	require.NoError(t, err)
	assert.False(t, started)

	subs, err := s.GetSubfolders(ctx, "0", folder.PrivateID, p)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "default0", subs[0].ID)

	root, err := s.GetFolder(ctx, "0", "default0", p)
	require.NoError(t, err)
	assert.Equal(t, folder.PrivateID, root.ParentID)
	assert.Equal(t, []string{"default0/INBOX", "default0/Sent"}, root.SubfolderIDs)

	inbox, err := s.GetFolder(ctx, "0", "default0/INBOX", p)
	require.NoError(t, err)
	assert.True(t, inbox.Default)
	assert.Equal(t, 7, inbox.CreatedBy)
	assert.Equal(t, []string{"default0/INBOX/Projects", "default0/INBOX/Trash"}, inbox.SubfolderIDs)

	trash, err := s.GetFolder(ctx, "0", "default0/INBOX/Trash", p)
	require.NoError(t, err)
	assert.Equal(t, folder.TypeTrash, trash.Type)

	_, err = s.GetFolder(ctx, "0", "default0/Missing", p)
	assert.True(t, folder.IsNotFound(err))

	id, err := s.DefaultFolderID(ctx, "0", folder.ContentMail, folder.TypePrivate, p)
	require.NoError(t, err)
	assert.Equal(t, "default0/INBOX", id)
	_, err = s.DefaultFolderID(ctx, "0", folder.ContentCalendar, folder.TypePrivate, p)
	assert.True(t, folder.IsCode(err, folder.ErrNoDefaultFolder))
}

func TestMailStore_CreateRenameDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := params()
	since := time.Now().UTC().Add(-time.Second)

	f := &folder.Folder{TreeID: "0", ParentID: "default0", Name: "Rechnungen", Subscribed: true}
	require.NoError(t, s.CreateFolder(ctx, f, p))
	assert.Equal(t, "default0/Rechnungen", f.ID)

	err := s.CreateFolder(ctx, &folder.Folder{TreeID: "0", ParentID: "default0", Name: "Rechnungen"}, p)
	assert.True(t, folder.IsCode(err, folder.ErrEqualName))
	err = s.CreateFolder(ctx, &folder.Folder{TreeID: "0", ParentID: "default0", Name: "a/b"}, p)
	assert.True(t, folder.IsCode(err, folder.ErrInvalidName))
	err = s.CreateFolder(ctx, &folder.Folder{TreeID: "0", ParentID: "default0", Name: "x", ContentType: folder.ContentCalendar}, p)
	assert.True(t, folder.IsCode(err, folder.ErrInvalidContentType))

	child := &folder.Folder{TreeID: "0", ParentID: f.ID, Name: "2024"}
	require.NoError(t, s.CreateFolder(ctx, child, p))

	// Moving below INBOX changes the ids of the whole subtree.
	moved := &folder.Folder{ID: f.ID, TreeID: "0", ParentID: "default0/INBOX", Name: "Rechnungen", Subscribed: true}
	require.NoError(t, s.UpdateFolder(ctx, moved, p))
	assert.Equal(t, "default0/INBOX/Rechnungen", moved.ID)

	_, err = s.GetFolder(ctx, "0", "default0/INBOX/Rechnungen/2024", p)
	require.NoError(t, err)

	deleted, err := s.DeletedFolderIDs(ctx, "0", since, p)
	require.NoError(t, err)
	assert.Contains(t, deleted, "default0/Rechnungen")

	err = s.DeleteFolder(ctx, "0", moved.ID, p)
	assert.True(t, folder.IsCode(err, folder.ErrFolderNotDeleteable))
	require.NoError(t, s.DeleteFolder(ctx, "0", "default0/INBOX/Rechnungen/2024", p))
	require.NoError(t, s.DeleteFolder(ctx, "0", moved.ID, p))

	err = s.DeleteFolder(ctx, "0", "default0/INBOX", p)
	assert.True(t, folder.IsCode(err, folder.ErrFolderNotDeleteable))
	err = s.UpdateFolder(ctx, &folder.Folder{ID: "default0/INBOX", TreeID: "0", ParentID: "default0", Name: "Posteingang"}, p)
	assert.True(t, folder.IsCode(err, folder.ErrFolderNotMoveable))

	ok, err := s.ContainsFolder(ctx, "0", "default0/INBOX/Rechnungen", folder.KindBackup, p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMailStore_Trash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := params()

	for i := 0; i < 2; i++ {
		f := &folder.Folder{TreeID: "0", ParentID: "default0", Name: "Old"}
		require.NoError(t, s.CreateFolder(ctx, f, p))
		require.NoError(t, s.TrashFolder(ctx, "0", f.ID, p))
	}

	trash, err := s.GetFolder(ctx, "0", "default0/INBOX/Trash", p)
	require.NoError(t, err)
	assert.Equal(t, []string{"default0/INBOX/Trash/Old", "default0/INBOX/Trash/Old 2"}, trash.SubfolderIDs)

	require.NoError(t, s.TrashFolder(ctx, "0", "default0/INBOX/Trash/Old 2", p))
	ok, err := s.ContainsFolder(ctx, "0", "default0/INBOX/Trash/Old 2", folder.KindWorking, p)
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.TrashFolder(ctx, "0", "default0/INBOX", p)
	assert.True(t, folder.IsCode(err, folder.ErrFolderNotDeleteable))
}

func TestMailStore_Objects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := params()

	empty, err := s.IsEmpty(ctx, "0", "default0/Sent", p)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, s.AddMessage("0", "default0/Sent", 7))
	foreign, err := s.ContainsForeignObjects(ctx, "0", "default0/Sent", p)
	require.NoError(t, err)
	assert.False(t, foreign)

	require.NoError(t, s.AddMessage("0", "default0/Sent", 8))
	foreign, err = s.ContainsForeignObjects(ctx, "0", "default0/Sent", p)
	require.NoError(t, err)
	assert.True(t, foreign)

	require.NoError(t, s.ClearFolder(ctx, "0", "default0/Sent", p))
	empty, err = s.IsEmpty(ctx, "0", "default0/Sent", p)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMailStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	found, err := s.SearchByName(ctx, "0", "", "proj", time.Time{}, true, params())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "default0/INBOX/Projects", found[0].ID)

	found, err = s.SearchByName(ctx, "0", "", "proj", time.Time{}, false, params())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMailStore_Mailboxes(t *testing.T) {
	s := newTestStore(t)
	infos := s.Mailboxes()
	require.Len(t, infos, 4)
	assert.Equal(t, "INBOX", infos[0].Name)
	assert.Contains(t, infos[0].Attributes, `\HasChildren`)
}
