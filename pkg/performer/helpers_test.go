package performer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/permission"
	"github.com/marmos91/dittofolders/pkg/registry"
	"github.com/marmos91/dittofolders/pkg/store/engine"
	"github.com/marmos91/dittofolders/pkg/store/memory"
)

const (
	realTree    = folder.RealTreeID
	virtualTree = folder.VirtualTreeID
	actor       = 1
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// env is a service over a real tree "0" and a virtual tree "1", each backed
// by one catch-all memory storage.
type env struct {
	t       *testing.T
	ctx     context.Context
	reg     *registry.Registry
	real    *engine.Store
	virtual *engine.Store
	svc     *Service
	session *folder.Session
}

type envOptions struct {
	// wrapReal and wrapVirtual decorate the storages before registration.
	wrapReal    func(folder.Storage) folder.Storage
	wrapVirtual func(folder.Storage) folder.Storage

	// extra storages are registered after the two default ones.
	extra []folder.Storage

	realOptions engine.Options
	service     Options
	calculator  permission.Calculator
}

func newEnv(t *testing.T, opts envOptions) *env {
	t.Helper()
	ctx := context.Background()

	ro := opts.realOptions
	if ro.Name == "" {
		ro.Name = "real"
	}
	if ro.Scope.TreeIDs == nil {
		ro.Scope = folder.Scope{TreeIDs: []string{realTree}, CatchAll: true}
	}
	realStore, err := memory.New(ro, memory.Config{})
	require.NoError(t, err)
	require.NoError(t, realStore.Seed(ctx, folder.SystemFolders(realTree, epoch.Add(-time.Hour))...))

	virtualStore, err := memory.NewVirtualTree(ctx, "virtual", virtualTree)
	require.NoError(t, err)

	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterTree(folder.Tree{ID: realTree, Name: "real"}))
	require.NoError(t, reg.RegisterTree(folder.Tree{ID: virtualTree, Name: "virtual", Virtual: true, RealTreeID: realTree}))

	var rs, vs folder.Storage = realStore, virtualStore
	if opts.wrapReal != nil {
		rs = opts.wrapReal(rs)
	}
	if opts.wrapVirtual != nil {
		vs = opts.wrapVirtual(vs)
	}
	require.NoError(t, reg.RegisterStorage(rs))
	require.NoError(t, reg.RegisterStorage(vs))
	for _, s := range opts.extra {
		require.NoError(t, reg.RegisterStorage(s))
	}

	svcOpts := opts.service
	if svcOpts.Clock == nil {
		svcOpts.Clock = func() time.Time { return epoch }
	}
	var calc permission.Calculator = permission.NewACLCalculator()
	if opts.calculator != nil {
		calc = opts.calculator
	}
	svc, err := NewService(reg, calc, svcOpts)
	require.NoError(t, err)

	return &env{
		t:       t,
		ctx:     ctx,
		reg:     reg,
		real:    realStore,
		virtual: virtualStore,
		svc:     svc,
		session: &folder.Session{UserID: actor, Locale: "en"},
	}
}

// private returns a private folder of the actor, ready for seeding.
func private(tree, id, parent, name string) *folder.Folder {
	return &folder.Folder{
		ID:           id,
		TreeID:       tree,
		ParentID:     parent,
		Name:         name,
		ContentType:  folder.ContentCalendar,
		Type:         folder.TypePrivate,
		CreatedBy:    actor,
		ModifiedBy:   actor,
		CreationDate: epoch.Add(-time.Hour),
		LastModified: epoch.Add(-time.Hour),
		Subscribed:   true,
		Permissions:  []folder.Permission{folder.OwnerPermission(actor)},
	}
}

func (e *env) seed(s *engine.Store, folders ...*folder.Folder) {
	e.t.Helper()
	require.NoError(e.t, s.Seed(e.ctx, folders...))
}

func (e *env) create(treeID, parentID, name string, ct folder.ContentType, autoRename bool) (string, error) {
	return e.svc.Create(e.ctx, e.session, CreateRequest{
		Folder:     &folder.Folder{TreeID: treeID, ParentID: parentID, Name: name, ContentType: ct},
		AutoRename: autoRename,
	})
}

func (e *env) mustCreate(treeID, parentID, name string) string {
	e.t.Helper()
	id, err := e.create(treeID, parentID, name, folder.ContentCalendar, false)
	require.NoError(e.t, err)
	return id
}

// children lists the ids of the folders directly below parentID in s.
func (e *env) children(s folder.Storage, treeID, parentID string) []string {
	e.t.Helper()
	ids, err := s.GetSubfolders(e.ctx, treeID, parentID, folder.NewStorageParameters(e.session))
	require.NoError(e.t, err)
	return folder.IDs(ids)
}

func names(folders []*folder.UserizedFolder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Name
	}
	return out
}

func ids(folders []*folder.UserizedFolder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.ID
	}
	return out
}

// callLog collects storage calls of several storages in call order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// recordingStorage counts transaction calls per parameters bag and logs
// writes.
type recordingStorage struct {
	folder.Storage
	log *callLog

	mu         sync.Mutex
	started    map[*folder.StorageParameters]int
	terminated map[*folder.StorageParameters]int
}

func newRecording(s folder.Storage, log *callLog) *recordingStorage {
	return &recordingStorage{
		Storage:    s,
		log:        log,
		started:    make(map[*folder.StorageParameters]int),
		terminated: make(map[*folder.StorageParameters]int),
	}
}

func (r *recordingStorage) StartTransaction(ctx context.Context, p *folder.StorageParameters, modify bool) (bool, error) {
	started, err := r.Storage.StartTransaction(ctx, p, modify)
	if started {
		r.mu.Lock()
		r.started[p]++
		r.mu.Unlock()
	}
	return started, err
}

func (r *recordingStorage) CommitTransaction(ctx context.Context, p *folder.StorageParameters) error {
	r.mu.Lock()
	r.terminated[p]++
	r.mu.Unlock()
	r.log.add("%s:commit", r.Name())
	return r.Storage.CommitTransaction(ctx, p)
}

func (r *recordingStorage) Rollback(ctx context.Context, p *folder.StorageParameters) error {
	r.mu.Lock()
	r.terminated[p]++
	r.mu.Unlock()
	r.log.add("%s:rollback", r.Name())
	return r.Storage.Rollback(ctx, p)
}

func (r *recordingStorage) CreateFolder(ctx context.Context, f *folder.Folder, p *folder.StorageParameters) error {
	err := r.Storage.CreateFolder(ctx, f, p)
	r.log.add("%s:create:%s", r.Name(), f.Name)
	return err
}

func (r *recordingStorage) DeleteFolder(ctx context.Context, treeID, id string, p *folder.StorageParameters) error {
	r.log.add("%s:delete:%s", r.Name(), id)
	return r.Storage.DeleteFolder(ctx, treeID, id, p)
}

// balanced reports whether every started transaction was terminated exactly
// once.
func (r *recordingStorage) balanced(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for p, n := range r.started {
		require.Equal(t, 1, n, "transaction started twice on %s", r.Name())
		require.Equal(t, 1, r.terminated[p], "transaction on %s terminated %d times", r.Name(), r.terminated[p])
	}
	for p, n := range r.terminated {
		require.Equal(t, 1, n, "%s terminated without a started transaction", r.Name())
		require.Contains(t, r.started, p)
	}
}

var errInjected = errors.New("injected failure")

// faultyStorage fails CreateFolder after the write reached the transaction.
type faultyStorage struct {
	folder.Storage
	failCreate        bool
	failGetSubfolders bool
}

func (f *faultyStorage) CreateFolder(ctx context.Context, fo *folder.Folder, p *folder.StorageParameters) error {
	if err := f.Storage.CreateFolder(ctx, fo, p); err != nil {
		return err
	}
	if f.failCreate {
		return errInjected
	}
	return nil
}

func (f *faultyStorage) GetSubfolders(ctx context.Context, treeID, parentID string, p *folder.StorageParameters) ([]folder.SortableID, error) {
	if f.failGetSubfolders {
		return nil, errInjected
	}
	return f.Storage.GetSubfolders(ctx, treeID, parentID, p)
}

// slowStorage delays batch loads and enumerations so that fan-out tasks
// finish in a different order than they were started.
type slowStorage struct {
	folder.Storage
	delay time.Duration
}

func (s *slowStorage) GetFolders(ctx context.Context, treeID string, ids []string, p *folder.StorageParameters) ([]*folder.Folder, error) {
	time.Sleep(s.delay)
	return s.Storage.GetFolders(ctx, treeID, ids, p)
}

func (s *slowStorage) GetSubfolders(ctx context.Context, treeID, parentID string, p *folder.StorageParameters) ([]folder.SortableID, error) {
	time.Sleep(s.delay)
	return s.Storage.GetSubfolders(ctx, treeID, parentID, p)
}

func (s *slowStorage) VisibleFolderIDs(ctx context.Context, treeID string, ct folder.ContentType, typ folder.Type, p *folder.StorageParameters) ([]folder.SortableID, error) {
	time.Sleep(s.delay)
	return s.Storage.(folder.VisibleEnumerator).VisibleFolderIDs(ctx, treeID, ct, typ, p)
}

// panickingStorage panics on batch loads.
type panickingStorage struct {
	folder.Storage
}

func (p *panickingStorage) GetFolders(context.Context, string, []string, *folder.StorageParameters) ([]*folder.Folder, error) {
	panic("batch load exploded")
}

// preparingStorage counts the shared folders it prepares.
type preparingStorage struct {
	folder.Storage

	mu       sync.Mutex
	prepared []string
}

func (p *preparingStorage) PrepareFolder(ctx context.Context, treeID string, f *folder.Folder, params *folder.StorageParameters) (*folder.Folder, error) {
	p.mu.Lock()
	p.prepared = append(p.prepared, f.ID)
	p.mu.Unlock()
	return p.Storage.(folder.FolderPreparer).PrepareFolder(ctx, treeID, f, params)
}
