package performer

import (
	"context"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// CreateRequest describes a folder to create.
type CreateRequest struct {
	// Folder carries TreeID, ParentID, Name and optionally ContentType,
	// Type, Permissions and Subscribed. The ID is assigned by the storage.
	Folder *folder.Folder

	// AutoRename picks a free name instead of failing with ErrEqualName.
	AutoRename bool
}

// Create creates a folder and returns its id.
//
// In a virtual tree the folder is first created in the real tree, below
// the real counterpart of the parent or, when the parent has none, below
// the actor's real default folder for the content type. The virtual entry
// referencing it is written afterwards. A failure at any step rolls back
// every storage the operation opened.
func (s *Service) Create(ctx context.Context, session *folder.Session, req CreateRequest) (string, error) {
	var id string
	_, err := s.run(ctx, "create", session, true, func(o *operation) error {
		created, err := o.create(req)
		id = created
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (o *operation) create(req CreateRequest) (string, error) {
	if req.Folder == nil {
		return "", folder.NewError(folder.ErrMissingParameter, "", "", "folder is required")
	}
	f := req.Folder.Clone()
	f.ID = ""
	f.SubfolderIDs = nil
	if f.TreeID == "" || f.ParentID == "" {
		return "", folder.NewError(folder.ErrMissingParameter, f.TreeID, f.ParentID, "tree and parent are required")
	}

	tree, err := o.tree(f.TreeID)
	if err != nil {
		return "", err
	}
	if err := o.validateName(f.TreeID, f.ParentID, f.Name); err != nil {
		return "", err
	}

	parentStorage, parent, perm, err := o.loadVisible(f.TreeID, f.ParentID)
	if err != nil {
		return "", err
	}
	if f.ContentType == "" {
		f.ContentType = parentStorage.DefaultContentType()
	}
	if !f.ContentType.Valid() {
		return "", folder.NewError(folder.ErrInvalidContentType, f.TreeID, f.ParentID, "invalid content type %q", f.ContentType)
	}
	if f.ContentType == folder.ContentMail && (parent.ID == folder.PublicID || parent.Type == folder.TypePublic) {
		return "", folder.NewError(folder.ErrNoPublicMailFolder, f.TreeID, f.ParentID, "mail folders cannot be public")
	}
	if !perm.CanCreateSubfolders() {
		return "", folder.NewError(folder.ErrNoCreateSubfolders, f.TreeID, f.ParentID, "user %d may not create subfolders", o.userID())
	}
	o.prepareNew(f, parent)

	if f.ContentType == folder.ContentMail && parent.ID == folder.PrivateID {
		if id, ok, err := o.createInAccountRoot(f, req.AutoRename); ok || err != nil {
			return id, err
		}
	}

	name, err := o.resolveName(f.TreeID, parent, f.Name, f.ContentType, "", req.AutoRename)
	if err != nil {
		return "", err
	}
	f.Name = name

	if tree.Virtual {
		return o.createVirtual(tree, parentStorage, parent, f)
	}

	target, err := o.targetStorage(f.TreeID, parentStorage, parent.ID, f.ContentType)
	if err != nil {
		return "", err
	}
	if err := o.open(target); err != nil {
		return "", err
	}
	if err := target.CreateFolder(o.ctx, f, o.params); err != nil {
		return "", err
	}
	logger.Debug("Created folder %s/%s in storage %s", f.TreeID, f.ID, target.Name())
	return f.ID, nil
}

// prepareNew fills the attributes of a new folder the client left unset.
func (o *operation) prepareNew(f *folder.Folder, parent *folder.Folder) {
	uid := o.userID()
	f.CreatedBy = uid
	f.ModifiedBy = uid

	if f.Type == "" || f.Type == folder.TypeSystem {
		f.Type = folder.TypePrivate
		if parent.ID == folder.PublicID || parent.Type == folder.TypePublic {
			f.Type = folder.TypePublic
		}
	}

	if len(f.Permissions) > 0 {
		return
	}
	if parent.Type == folder.TypeSystem || folder.IsSystemFolderID(parent.ID) {
		f.Permissions = []folder.Permission{folder.OwnerPermission(uid)}
		return
	}
	owner := false
	for _, p := range parent.Permissions {
		if p.IsSystem() {
			continue
		}
		if !p.Group && p.Entity == uid {
			p = p.Merge(folder.OwnerPermission(uid))
			owner = true
		}
		f.Permissions = append(f.Permissions, p)
	}
	if !owner {
		f.Permissions = append(f.Permissions, folder.OwnerPermission(uid))
	}
}

// targetStorage picks the storage that receives a new child of parentID
// with content type ct: a storage serving the parent that lists ct
// explicitly wins over the parent's own storage.
func (o *operation) targetStorage(treeID string, parentStorage folder.Storage, parentID string, ct folder.ContentType) (folder.Storage, error) {
	for _, s := range o.svc.registry.StoragesForParent(treeID, parentID) {
		for _, supported := range s.SupportedContentTypes() {
			if supported == ct {
				return s, nil
			}
		}
	}
	if parentStorage != nil && folder.SupportsContentType(parentStorage, ct) {
		return parentStorage, nil
	}
	return nil, folder.NewError(folder.ErrInvalidContentType, treeID, parentID, "no storage accepts %s folders here", ct)
}

// createInAccountRoot places a mail folder requested below the private root
// directly into the default mail account. ok is false when no mail storage
// with an account root serves the tree.
func (o *operation) createInAccountRoot(f *folder.Folder, autoRename bool) (id string, ok bool, err error) {
	ms, err := o.svc.registry.StorageForContentType(f.TreeID, folder.ContentMail)
	if err != nil {
		return "", false, nil
	}
	ap, isAccount := ms.(folder.AccountRootProvider)
	if !isAccount {
		return "", false, nil
	}
	if err := o.open(ms); err != nil {
		return "", true, err
	}

	rootID := ap.AccountRootID(f.TreeID)
	root, err := ms.GetFolder(o.ctx, f.TreeID, rootID, o.params)
	if err != nil {
		return "", true, err
	}
	perm, err := o.permission(root)
	if err != nil {
		return "", true, err
	}
	if !perm.CanCreateSubfolders() {
		return "", false, nil
	}

	name, err := o.resolveName(f.TreeID, root, f.Name, f.ContentType, "", autoRename)
	if err != nil {
		return "", true, err
	}
	f.Name = name
	f.ParentID = rootID
	if err := ms.CreateFolder(o.ctx, f, o.params); err != nil {
		return "", true, err
	}
	return f.ID, true, nil
}

// createVirtual creates f below parent in a virtual tree.
func (o *operation) createVirtual(tree folder.Tree, parentStorage folder.Storage, parent *folder.Folder, f *folder.Folder) (string, error) {
	vTarget, err := o.targetStorage(tree.ID, parentStorage, parent.ID, f.ContentType)
	if err != nil {
		return "", err
	}
	if err := o.open(vTarget); err != nil {
		return "", err
	}

	realTree := tree.RealTreeID
	realParentStorage, hasRealParent, err := o.realCounterpart(realTree, parent.ID)
	if err != nil {
		return "", err
	}
	if hasRealParent && realParentStorage == vTarget {
		if err := vTarget.CreateFolder(o.ctx, f, o.params); err != nil {
			return "", err
		}
		return f.ID, nil
	}

	realParentID, realStorage, err := o.realLocation(realTree, realParentStorage, hasRealParent, parent.ID, f.ContentType)
	if err != nil {
		return "", err
	}
	realParent, err := realStorage.GetFolder(o.ctx, realTree, realParentID, o.params)
	if err != nil {
		return "", err
	}
	realName, err := o.resolveName(realTree, realParent, f.Name, f.ContentType, "", true)
	if err != nil {
		return "", err
	}

	backing := f.Clone()
	backing.TreeID = realTree
	backing.ParentID = realParentID
	backing.Name = realName
	if err := realStorage.CreateFolder(o.ctx, backing, o.params); err != nil {
		return "", err
	}

	virtual := f.Clone()
	virtual.ID = backing.ID
	virtual.TreeID = tree.ID
	virtual.ParentID = parent.ID
	if err := vTarget.CreateFolder(o.ctx, virtual, o.params); err != nil {
		return "", err
	}

	if err := realStorage.UpdateLastModified(o.ctx, o.params.Timestamp(), realTree, realParentID, o.params); err != nil {
		return "", err
	}
	logger.Debug("Created folder %s in real tree %s below %s and in virtual tree %s below %s",
		backing.ID, realTree, realParentID, tree.ID, parent.ID)
	return virtual.ID, nil
}

// realLocation returns where the real counterpart of a new virtual folder
// goes: below the parent's own real counterpart when a storage there accepts
// the content type, otherwise below the actor's real default folder.
func (o *operation) realLocation(realTree string, realParentStorage folder.Storage, hasRealParent bool, parentID string, ct folder.ContentType) (string, folder.Storage, error) {
	if hasRealParent {
		if s, err := o.targetStorage(realTree, realParentStorage, parentID, ct); err == nil {
			if err := o.open(s); err != nil {
				return "", nil, err
			}
			return parentID, s, nil
		}
	}

	s, err := o.svc.registry.StorageForContentType(realTree, ct)
	if err != nil {
		return "", nil, err
	}
	if err := o.open(s); err != nil {
		return "", nil, err
	}
	defID, err := s.DefaultFolderID(o.ctx, realTree, ct, folder.TypePrivate, o.params)
	if err != nil {
		return "", nil, err
	}
	target, err := o.storageFor(realTree, defID)
	if err != nil {
		return "", nil, err
	}
	return defID, target, nil
}
