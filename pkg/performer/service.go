// Package performer orchestrates folder operations across the storages of a
// registry.
//
// Every public operation of Service runs as one logical operation: the
// storages it touches are opened through an OpenedStorages set, each
// returned folder is checked against the actor's permission and converted
// into a UserizedFolder, and all opened storages are committed when the
// operation succeeds or rolled back when it fails. Operations spanning
// several storages fan out one task per storage on a shared worker pool.
package performer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/i18n"
	"github.com/marmos91/dittofolders/pkg/metrics"
	"github.com/marmos91/dittofolders/pkg/permission"
	"github.com/marmos91/dittofolders/pkg/registry"
)

// maxDepth bounds every walk along parent or child links.
const maxDepth = 128

// Options configures a Service.
type Options struct {
	// WorkerPoolSize bounds the storage tasks running concurrently across
	// all operations.
	// Default: 16
	WorkerPoolSize int

	// AllowedContentTypes restricts the content types visible to actors.
	// Empty allows every content type.
	AllowedContentTypes []folder.ContentType

	// ReservedNames cannot be used for folders created directly below a
	// system folder. The localized names of the system folders are always
	// reserved.
	ReservedNames []string

	// Localizer translates system folder names.
	// Default: i18n.NewCatalog()
	Localizer i18n.Localizer

	// Metrics records operation metrics. Nil disables them.
	Metrics metrics.PerformerMetrics

	// Clock returns the operation timestamp.
	// Default: time.Now
	Clock func() time.Time
}

// Service executes folder operations against the storages of a registry.
//
// Thread Safety:
// Service is safe for concurrent use. All per-operation state lives in the
// operation's StorageParameters and OpenedStorages.
type Service struct {
	registry   *registry.Registry
	calculator permission.Calculator
	localizer  i18n.Localizer
	metrics    metrics.PerformerMetrics
	pool       *Pool
	opts       Options
}

// NewService creates a Service.
//
// Parameters:
//   - reg: Registry resolving trees and storages
//   - calc: Permission calculator consulted for every returned folder
//   - opts: Service options
//
// Returns:
//   - *Service: The service
//   - error: Missing registry or calculator
func NewService(reg *registry.Registry, calc permission.Calculator, opts Options) (*Service, error) {
	if reg == nil {
		return nil, fmt.Errorf("performer: registry is required")
	}
	if calc == nil {
		return nil, fmt.Errorf("performer: permission calculator is required")
	}
	if opts.Localizer == nil {
		opts.Localizer = i18n.NewCatalog()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopPerformerMetrics()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Service{
		registry:   reg,
		calculator: calc,
		localizer:  opts.Localizer,
		metrics:    opts.Metrics,
		pool:       NewPool(opts.WorkerPoolSize),
		opts:       opts,
	}, nil
}

// Registry returns the registry the service operates on.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// operation is the state of one logical operation, or of one fan-out task
// of it.
type operation struct {
	svc    *Service
	ctx    context.Context
	name   string
	id     string
	modify bool
	params *folder.StorageParameters
	opened *OpenedStorages

	// inTask is set on fan-out tasks; nested fan-outs then run serially.
	inTask bool
}

// run executes fn as one logical operation and terminates every storage it
// opened: commit when fn succeeds, rollback when it fails or panics.
// Non-domain errors are wrapped into ErrUnexpected once, here.
func (s *Service) run(ctx context.Context, name string, session *folder.Session, modify bool, fn func(o *operation) error) (warnings []folder.Warning, err error) {
	if session == nil {
		return nil, folder.NewError(folder.ErrMissingParameter, "", "", "session is required")
	}

	start := time.Now()
	params := folder.NewStorageParameters(session)
	params.SetTimestamp(s.opts.Clock().UTC())
	if len(s.opts.AllowedContentTypes) > 0 {
		params.SetDecorator(&folder.Decorator{AllowedContentTypes: s.opts.AllowedContentTypes})
	}

	o := &operation{
		svc:    s,
		ctx:    ctx,
		name:   name,
		id:     uuid.NewString(),
		modify: modify,
		params: params,
		opened: NewOpenedStorages(params, s.metrics),
	}
	logger.Debug("Operation %s [%s] started (user=%d)", name, o.id, session.UserID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Operation %s [%s] panicked: %v\n%s", name, o.id, r, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", name, r)
		}

		term := context.WithoutCancel(ctx)
		if err != nil {
			o.opened.RollbackAll(term)
		} else if cerr := o.opened.CommitAll(term); cerr != nil {
			err = cerr
		}
		err = folder.Unexpected(err)
		warnings = params.Warnings()

		code := "ok"
		if err != nil {
			code = folder.CodeOf(err).String()
			logger.Debug("Operation %s [%s] failed: %v", name, o.id, err)
		}
		s.metrics.RecordOperation(name, time.Since(start), code)
		if len(warnings) > 0 {
			s.metrics.RecordWarnings(name, len(warnings))
		}
	}()

	return nil, fn(o)
}

// task derives the operation state of a fan-out task: own parameters, own
// opened storages.
func (o *operation) task(ctx context.Context, params *folder.StorageParameters) *operation {
	return &operation{
		svc:    o.svc,
		ctx:    ctx,
		name:   o.name,
		id:     o.id,
		modify: o.modify,
		params: params,
		opened: NewOpenedStorages(params, o.svc.metrics),
		inTask: true,
	}
}

func (o *operation) session() *folder.Session {
	return o.params.Session()
}

func (o *operation) userID() int {
	return o.params.UserID()
}

func (o *operation) locale() string {
	if s := o.session(); s != nil {
		return s.Locale
	}
	return ""
}

func (o *operation) tree(treeID string) (folder.Tree, error) {
	if treeID == "" {
		return folder.Tree{}, folder.NewError(folder.ErrMissingParameter, "", "", "tree id is required")
	}
	return o.svc.registry.Tree(treeID)
}

func (o *operation) open(s folder.Storage) error {
	_, err := o.opened.OpenIfNeeded(o.ctx, s, o.modify)
	return err
}

// storageFor resolves and opens the storage of a folder.
func (o *operation) storageFor(treeID, folderID string) (folder.Storage, error) {
	if folderID == "" {
		return nil, folder.NewError(folder.ErrMissingParameter, treeID, "", "folder id is required")
	}
	s, err := o.svc.registry.StorageFor(treeID, folderID)
	if err != nil {
		return nil, err
	}
	if err := o.open(s); err != nil {
		return nil, err
	}
	return s, nil
}

// load resolves the storage of a folder and loads it.
func (o *operation) load(treeID, folderID string) (folder.Storage, *folder.Folder, error) {
	s, err := o.storageFor(treeID, folderID)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.GetFolder(o.ctx, treeID, folderID, o.params)
	if err != nil {
		return nil, nil, err
	}
	return s, f, nil
}

func (o *operation) permission(f *folder.Folder) (folder.Permission, error) {
	return o.svc.calculator.Calculate(o.ctx, f, o.session(), o.params.AllowedContentTypes())
}

// loadVisible loads a folder and fails with ErrFolderNotVisible when the
// actor cannot see it.
func (o *operation) loadVisible(treeID, folderID string) (folder.Storage, *folder.Folder, folder.Permission, error) {
	s, f, err := o.load(treeID, folderID)
	if err != nil {
		return nil, nil, folder.Permission{}, err
	}
	perm, err := o.permission(f)
	if err != nil {
		return nil, nil, folder.Permission{}, err
	}
	if !perm.Visible() {
		return nil, nil, folder.Permission{}, folder.NotVisible(treeID, folderID, o.userID())
	}
	return s, f, perm, nil
}

// realCounterpart returns the storage holding folderID in the real tree, if
// the folder exists there.
func (o *operation) realCounterpart(realTreeID, folderID string) (folder.Storage, bool, error) {
	s, err := o.svc.registry.StorageFor(realTreeID, folderID)
	if err != nil {
		if folder.IsCode(err, folder.ErrNoStorageForID) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := o.open(s); err != nil {
		return nil, false, err
	}
	ok, err := s.ContainsFolder(o.ctx, realTreeID, folderID, folder.KindWorking, o.params)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return s, true, nil
}

// checkUnmodified fails with ErrConcurrentModification when f changed after
// the client's last known timestamp.
func checkUnmodified(f *folder.Folder, ifUnmodifiedSince time.Time) error {
	if ifUnmodifiedSince.IsZero() || !f.LastModified.After(ifUnmodifiedSince) {
		return nil
	}
	return folder.NewError(folder.ErrConcurrentModification, f.TreeID, f.ID,
		"folder modified at %s", f.LastModified.Format(time.RFC3339Nano))
}

// publicSemantics reports whether a folder without a fixed subfolder list
// is presented as having children without resolving them.
func publicSemantics(f *folder.Folder) bool {
	return f.Type == folder.TypePublic || f.ID == folder.PublicID || f.ID == folder.SharedID
}
