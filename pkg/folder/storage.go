package folder

import (
	"context"
	"time"
)

// StorageKind selects which state ContainsFolder inspects.
type StorageKind int

const (
	// KindWorking inspects live folders.
	KindWorking StorageKind = iota
	// KindBackup inspects deleted folders still remembered by the storage.
	KindBackup
)

// Storage is the capability interface every folder backend implements.
//
// The performers treat storages polymorphically: a storage is selected at
// runtime through the registry by tree and folder id, and every call carries
// the per-call StorageParameters. Storages keep transactional state in the
// parameters bag, so one Storage value can serve concurrent operations.
//
// Transaction Contract:
// StartTransaction reports whether it began a new transaction for these
// parameters. Only a true result obliges the caller to terminate the
// transaction with exactly one CommitTransaction or Rollback. Operations
// invoked outside a transaction are applied immediately.
//
// Error Handling:
// Missing folders are reported with an *Error carrying ErrNotFound. Other
// domain violations use the matching ErrorCode. Infrastructure failures may be
// returned as plain errors; the performers wrap them as ErrUnexpected.
type Storage interface {
	// Name returns the unique name the storage is registered under.
	Name() string

	// Scope returns the trees, folders and parents served by the storage.
	Scope() Scope

	// SupportedContentTypes lists the content types the storage can hold.
	// An empty list means every content type is supported.
	SupportedContentTypes() []ContentType

	// DefaultContentType is used for folders created without a content type.
	DefaultContentType() ContentType

	// StartTransaction begins a transaction unless one is already open for
	// these parameters.
	//
	// Parameters:
	//   - params: Per-call parameters; the transaction handle is kept there
	//   - modify: Whether the transaction will write
	//
	// Returns:
	//   - bool: true if a new transaction was started
	//   - error: Failure to open the transaction
	StartTransaction(ctx context.Context, params *StorageParameters, modify bool) (bool, error)

	// CommitTransaction commits the transaction held in params.
	CommitTransaction(ctx context.Context, params *StorageParameters) error

	// Rollback discards the transaction held in params.
	Rollback(ctx context.Context, params *StorageParameters) error

	// GetFolder loads a single folder.
	GetFolder(ctx context.Context, treeID, folderID string, params *StorageParameters) (*Folder, error)

	// GetFolders loads several folders in one call. The result has the same
	// order as ids. The call fails as a whole if any folder cannot be loaded.
	GetFolders(ctx context.Context, treeID string, ids []string, params *StorageParameters) ([]*Folder, error)

	// GetSubfolders lists the children of parentID held by this storage.
	GetSubfolders(ctx context.Context, treeID, parentID string, params *StorageParameters) ([]SortableID, error)

	// CreateFolder persists a new folder. If f.ID is empty the storage
	// assigns one and writes it back into f.
	CreateFolder(ctx context.Context, f *Folder, params *StorageParameters) error

	// UpdateFolder stores the changed attributes of an existing folder
	// (parent, name, permissions, subscription). Storages whose ids derive
	// from folder names write the new id back into f.ID.
	UpdateFolder(ctx context.Context, f *Folder, params *StorageParameters) error

	// DeleteFolder hard-deletes a folder and its contents. Subfolders must
	// have been deleted already.
	DeleteFolder(ctx context.Context, treeID, folderID string, params *StorageParameters) error

	// ClearFolder deletes the contents of a folder, keeping the folder.
	ClearFolder(ctx context.Context, treeID, folderID string, params *StorageParameters) error

	// CheckConsistency repairs dangling references within the storage.
	CheckConsistency(ctx context.Context, treeID string, params *StorageParameters) error

	// ContainsFolder reports whether the storage holds (KindWorking) or held
	// (KindBackup) the folder.
	ContainsFolder(ctx context.Context, treeID, folderID string, kind StorageKind, params *StorageParameters) (bool, error)

	// IsEmpty reports whether the folder holds no objects.
	IsEmpty(ctx context.Context, treeID, folderID string, params *StorageParameters) (bool, error)

	// ContainsForeignObjects reports whether the folder holds objects not
	// created by the actor.
	ContainsForeignObjects(ctx context.Context, treeID, folderID string, params *StorageParameters) (bool, error)

	// DefaultFolderID returns the actor's default folder for a content type.
	// Returns an ErrNoDefaultFolder error when there is none.
	DefaultFolderID(ctx context.Context, treeID string, ct ContentType, typ Type, params *StorageParameters) (string, error)

	// ModifiedFolderIDs lists folders modified after since, optionally
	// restricted to some content types.
	ModifiedFolderIDs(ctx context.Context, treeID string, since time.Time, contentTypes []ContentType, params *StorageParameters) ([]string, error)

	// DeletedFolderIDs lists folders hard-deleted after since.
	DeletedFolderIDs(ctx context.Context, treeID string, since time.Time, params *StorageParameters) ([]string, error)

	// UpdateLastModified sets the last-modified stamp of a folder.
	UpdateLastModified(ctx context.Context, lastModified time.Time, treeID, folderID string, params *StorageParameters) error
}

// TrashAware is implemented by storages that can move folders into a trash
// instead of deleting them.
type TrashAware interface {
	TrashFolder(ctx context.Context, treeID, folderID string, params *StorageParameters) error
}

// Searchable is implemented by storages that can search folders by name.
type Searchable interface {
	// SearchByName returns folders below rootID whose name contains query.
	// Folders modified before date are skipped when date is non-zero.
	SearchByName(ctx context.Context, treeID, rootID, query string, date time.Time, includeSubfolders bool, params *StorageParameters) ([]*Folder, error)
}

// RestoreAware is implemented by storages able to restore trashed folders.
type RestoreAware interface {
	// RestoreFromTrash restores the given folders and returns, per folder
	// id, the id of the parent it was restored into. Folders whose original
	// parent is gone are restored below defaultDestination.
	RestoreFromTrash(ctx context.Context, treeID string, folderIDs []string, defaultDestination string, params *StorageParameters) (map[string]string, error)
}

// UserSharedEnumerator is implemented by storages able to enumerate the
// folders the actor shares with other users.
type UserSharedEnumerator interface {
	UserSharedFolderIDs(ctx context.Context, treeID string, contentTypes []ContentType, params *StorageParameters) ([]SortableID, error)
}

// VisibleEnumerator is implemented by storages able to enumerate the
// folders of a content type and folder type visible to the actor.
type VisibleEnumerator interface {
	VisibleFolderIDs(ctx context.Context, treeID string, ct ContentType, typ Type, params *StorageParameters) ([]SortableID, error)
}

// FolderPreparer is implemented by storages that present foreign folders in a
// viewer-specific form (for instance below the owner's shared container).
type FolderPreparer interface {
	PrepareFolder(ctx context.Context, treeID string, f *Folder, params *StorageParameters) (*Folder, error)
}

// AccountRootProvider is implemented by storages whose folders live below
// an account root placed under the private root (mail accounts).
type AccountRootProvider interface {
	AccountRootID(treeID string) string
}

// SupportsContentType reports whether s can hold ct.
func SupportsContentType(s Storage, ct ContentType) bool {
	supported := s.SupportedContentTypes()
	if len(supported) == 0 {
		return true
	}
	for _, c := range supported {
		if c == ct {
			return true
		}
	}
	return false
}
