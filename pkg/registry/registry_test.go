package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStorage only answers the lookup-related methods.
type stubStorage struct {
	folder.Storage
	name     string
	scope    folder.Scope
	types    []folder.ContentType
	closeErr error
	closed   bool
	probeErr error
}

func (s *stubStorage) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.probeErr
}

func (s *stubStorage) Name() string                                { return s.name }
func (s *stubStorage) Scope() folder.Scope                         { return s.scope }
func (s *stubStorage) SupportedContentTypes() []folder.ContentType { return s.types }

func (s *stubStorage) Close() error {
	s.closed = true
	return s.closeErr
}

func newTestRegistry(t *testing.T) (*Registry, *stubStorage, *stubStorage, *stubStorage) {
	t.Helper()

	db := &stubStorage{
		name: "db",
		scope: folder.Scope{
			TreeIDs:         []string{folder.RealTreeID},
			CatchAll:        true,
			ExcludePrefixes: []string{"default"},
		},
	}
	mail := &stubStorage{
		name: "mail",
		scope: folder.Scope{
			TreeIDs:        []string{folder.RealTreeID, folder.VirtualTreeID},
			FolderPrefixes: []string{"default"},
			ParentIDs:      []string{folder.PrivateID},
		},
		types: []folder.ContentType{folder.ContentMail},
	}
	outlook := &stubStorage{
		name:  "outlook",
		scope: folder.Scope{TreeIDs: []string{folder.VirtualTreeID}, CatchAll: true},
	}

	reg := NewRegistry()
	require.NoError(t, reg.RegisterTree(folder.Tree{ID: folder.RealTreeID, Name: "real"}))
	require.NoError(t, reg.RegisterTree(folder.Tree{ID: folder.VirtualTreeID, Name: "outlook", Virtual: true, RealTreeID: folder.RealTreeID}))

	// outlook is registered before mail on purpose: precedence must not
	// depend on order when matches differ in specificity.
	require.NoError(t, reg.RegisterStorage(db))
	require.NoError(t, reg.RegisterStorage(outlook))
	require.NoError(t, reg.RegisterStorage(mail))

	return reg, db, mail, outlook
}

func TestRegisterStorage(t *testing.T) {
	reg, db, _, _ := newTestRegistry(t)

	assert.Error(t, reg.RegisterStorage(nil))
	assert.Error(t, reg.RegisterStorage(&stubStorage{}))
	assert.Error(t, reg.RegisterStorage(&stubStorage{name: "db"}))

	s, err := reg.Storage("db")
	require.NoError(t, err)
	assert.Same(t, db, s)

	_, err = reg.Storage("missing")
	assert.Error(t, err)

	assert.Equal(t, 3, reg.CountStorages())
	assert.Equal(t, []string{"db", "outlook", "mail"}, reg.ListStorages())
}

func TestRegisterTree(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.RegisterTree(folder.Tree{}))
	assert.Error(t, reg.RegisterTree(folder.Tree{ID: "1", Virtual: true, RealTreeID: "0"}))

	require.NoError(t, reg.RegisterTree(folder.Tree{ID: "0", Name: "real"}))
	require.NoError(t, reg.RegisterTree(folder.Tree{ID: "1", Virtual: true, RealTreeID: "0"}))
	assert.Error(t, reg.RegisterTree(folder.Tree{ID: "0"}))
	assert.Error(t, reg.RegisterTree(folder.Tree{ID: "5", Virtual: true, RealTreeID: "1"}))

	tree, err := reg.Tree("0")
	require.NoError(t, err)
	assert.Equal(t, "0", tree.RealTreeID)

	_, err = reg.Tree("7")
	assert.True(t, folder.IsCode(err, folder.ErrUnknownTree))
	assert.True(t, reg.TreeExists("1"))
	assert.Len(t, reg.Trees(), 2)
}

func TestStorageFor(t *testing.T) {
	reg, db, mail, outlook := newTestRegistry(t)

	tests := []struct {
		name     string
		tree     string
		id       string
		expected folder.Storage
	}{
		{"real numeric", "0", "42", db},
		{"real mail", "0", "default0/INBOX", mail},
		{"virtual numeric", "1", "42", outlook},
		{"virtual mail prefers prefix over catch-all", "1", "default0/INBOX", mail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := reg.StorageFor(tt.tree, tt.id)
			require.NoError(t, err)
			assert.Same(t, tt.expected, s)
		})
	}

	_, err := reg.StorageFor("9", "42")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &folder.Error{Code: folder.ErrNoStorageForID}))
}

func TestStoragesForParent(t *testing.T) {
	reg, db, mail, outlook := newTestRegistry(t)

	assert.Equal(t, []folder.Storage{db, mail}, reg.StoragesForParent("0", folder.PrivateID))
	assert.Equal(t, []folder.Storage{db}, reg.StoragesForParent("0", "42"))
	assert.Equal(t, []folder.Storage{mail}, reg.StoragesForParent("0", "default0"))
	assert.Equal(t, []folder.Storage{outlook, mail}, reg.StoragesForParent("1", folder.PrivateID))
	assert.Empty(t, reg.StoragesForParent("9", folder.PrivateID))
}

func TestStorageForContentType(t *testing.T) {
	reg, db, mail, outlook := newTestRegistry(t)

	s, err := reg.StorageForContentType("0", folder.ContentMail)
	require.NoError(t, err)
	assert.Same(t, mail, s)

	s, err = reg.StorageForContentType("0", folder.ContentCalendar)
	require.NoError(t, err)
	assert.Same(t, db, s)

	s, err = reg.StorageForContentType("1", folder.ContentTasks)
	require.NoError(t, err)
	assert.Same(t, outlook, s)

	_, err = reg.StorageForContentType("9", folder.ContentTasks)
	assert.True(t, folder.IsCode(err, folder.ErrNoStorageForID))
}

func TestAllStorages(t *testing.T) {
	reg, db, mail, outlook := newTestRegistry(t)

	assert.Equal(t, []folder.Storage{db, mail}, reg.AllStorages("0"))
	assert.Equal(t, []folder.Storage{outlook, mail}, reg.AllStorages("1"))
}

func TestClose(t *testing.T) {
	reg, db, mail, outlook := newTestRegistry(t)
	mail.closeErr = errors.New("boom")

	err := reg.Close()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `closing storage "mail"`)
	assert.True(t, db.closed)
	assert.True(t, mail.closed)
	assert.True(t, outlook.closed)
}

func TestHealthCheck(t *testing.T) {
	reg, _, mail, _ := newTestRegistry(t)
	require.NoError(t, reg.HealthCheck(context.Background()))

	mail.probeErr = errors.New("unreachable")
	err := reg.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `storage "mail" unhealthy`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, reg.HealthCheck(ctx), context.Canceled)
}
