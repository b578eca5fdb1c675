package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/store/engine"
)

func memoryStorage(name, treeID string) StorageConfig {
	return StorageConfig{
		Name:    name,
		Type:    "memory",
		Scope:   folder.Scope{TreeIDs: []string{treeID}, CatchAll: true},
		Options: map[string]any{},
	}
}

func TestCreateStorage_Memory(t *testing.T) {
	cfg := memoryStorage("mem", "0")
	cfg.Options = map[string]any{"first_id": 500, "id_prefix": "m"}
	cfg.ContentTypes = []string{"calendar"}
	cfg.DefaultFolders = map[string]string{"calendar": "m500"}

	s, err := CreateStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "mem", s.Name())

	store, ok := s.(*engine.Store)
	require.True(t, ok)
	assert.True(t, store.Scope().ServesTree("0"))
}

func TestCreateStorage_Badger(t *testing.T) {
	cfg := StorageConfig{
		Name:    "db",
		Type:    "badger",
		Scope:   folder.Scope{TreeIDs: []string{"0"}, CatchAll: true},
		Options: map[string]any{"db_path": filepath.Join(t.TempDir(), "folders"), "node_id": 1},
	}

	s, err := CreateStorage(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.(*engine.Store).Close() })
	assert.Equal(t, "db", s.Name())
}

func TestCreateStorage_Mail(t *testing.T) {
	cfg := StorageConfig{
		Name:    "mail",
		Type:    "mail",
		Scope:   folder.Scope{TreeIDs: []string{"0"}, FolderPrefixes: []string{"default0"}},
		Options: map[string]any{"mailboxes": []any{"INBOX/Work"}},
	}

	s, err := CreateStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "mail", s.Name())
}

func TestCreateStorage_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  StorageConfig
	}{
		{
			name: "badger without path",
			cfg:  StorageConfig{Name: "db", Type: "badger", Scope: folder.Scope{TreeIDs: []string{"0"}}},
		},
		{
			name: "badger node out of range",
			cfg: StorageConfig{Name: "db", Type: "badger", Scope: folder.Scope{TreeIDs: []string{"0"}},
				Options: map[string]any{"in_memory": true, "node_id": 4096}},
		},
		{
			name: "s3 without bucket",
			cfg: StorageConfig{Name: "files", Type: "s3", Scope: folder.Scope{TreeIDs: []string{"0"}},
				Options: map[string]any{"region": "eu-west-1"}},
		},
		{
			name: "s3 without region",
			cfg: StorageConfig{Name: "files", Type: "s3", Scope: folder.Scope{TreeIDs: []string{"0"}},
				Options: map[string]any{"bucket": "folders"}},
		},
		{
			name: "postgres without url",
			cfg:  StorageConfig{Name: "sql", Type: "postgres", Scope: folder.Scope{TreeIDs: []string{"0"}}},
		},
		{
			name: "mongo without database",
			cfg: StorageConfig{Name: "docs", Type: "mongo", Scope: folder.Scope{TreeIDs: []string{"0"}},
				Options: map[string]any{"uri": "mongodb://localhost:27017"}},
		},
		{
			name: "memory with wrong option type",
			cfg: StorageConfig{Name: "mem", Type: "memory", Scope: folder.Scope{TreeIDs: []string{"0"}},
				Options: map[string]any{"first_id": "many"}},
		},
		{
			name: "unknown default folder content type",
			cfg: StorageConfig{Name: "mem", Type: "memory", Scope: folder.Scope{TreeIDs: []string{"0"}},
				DefaultFolders: map[string]string{"fax": "1"}},
		},
		{
			name: "unknown type",
			cfg:  StorageConfig{Name: "x", Type: "ftp", Scope: folder.Scope{TreeIDs: []string{"0"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := CreateStorage(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestCreateStorage_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CreateStorage(ctx, memoryStorage("mem", "0"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInitializeRegistry_Default(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()

	reg, err := InitializeRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	assert.Equal(t, 2, reg.CountStorages())
	virtual, err := reg.Tree(folder.VirtualTreeID)
	require.NoError(t, err)
	assert.True(t, virtual.Virtual)
	assert.Equal(t, folder.RealTreeID, virtual.RealTreeID)

	// Both trees were seeded with their system folders
	for _, tree := range []string{folder.RealTreeID, folder.VirtualTreeID} {
		s, err := reg.StorageFor(tree, folder.PrivateID)
		require.NoError(t, err)
		f, err := s.GetFolder(ctx, tree, folder.PrivateID, folder.NewStorageParameters(nil))
		require.NoError(t, err)
		assert.Equal(t, folder.TypeSystem, f.Type)
	}

	svc, err := NewService(cfg, reg, nil)
	require.NoError(t, err)
	assert.Same(t, reg, svc.Registry())
}

func TestInitializeRegistry_SeedKeepsExistingFolders(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "folders")

	cfg := GetDefaultConfig()
	cfg.Trees = cfg.Trees[:1]
	cfg.Storages = []StorageConfig{{
		Name:    "db",
		Type:    "badger",
		Scope:   folder.Scope{TreeIDs: []string{folder.RealTreeID}, CatchAll: true},
		Seed:    true,
		Options: map[string]any{"db_path": dbPath},
	}}
	require.NoError(t, Validate(cfg))

	reg, err := InitializeRegistry(ctx, cfg)
	require.NoError(t, err)

	s, err := reg.Storage("db")
	require.NoError(t, err)
	params := folder.NewStorageParameters(nil)
	root, err := s.GetFolder(ctx, folder.RealTreeID, folder.RootID, params)
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	reg, err = InitializeRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	s, err = reg.Storage("db")
	require.NoError(t, err)
	again, err := s.GetFolder(ctx, folder.RealTreeID, folder.RootID, params)
	require.NoError(t, err)
	assert.True(t, root.CreationDate.Equal(again.CreationDate), "system folders were seeded twice")
}

func TestInitializeRegistry_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := InitializeRegistry(ctx, nil)
	require.Error(t, err)

	cfg := GetDefaultConfig()
	cfg.Storages = append(cfg.Storages, memoryStorage(cfg.Storages[0].Name, folder.RealTreeID))
	_, err = InitializeRegistry(ctx, cfg)
	assert.ErrorContains(t, err, "already registered")

	cfg = GetDefaultConfig()
	cfg.Storages[1].Options = map[string]any{"first_id": "many"}
	_, err = InitializeRegistry(ctx, cfg)
	assert.ErrorContains(t, err, cfg.Storages[1].Name)
}

func TestNewService_InvalidContentType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Performer.AllowedContentTypes = []string{"fax"}

	reg, err := InitializeRegistry(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	_, err = NewService(cfg, reg, nil)
	assert.Error(t, err)
}
