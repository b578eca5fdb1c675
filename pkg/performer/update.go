package performer

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/permission"
)

// UpdateRequest describes changes to an existing folder.
type UpdateRequest struct {
	// Folder identifies the folder (TreeID, ID) and carries its desired
	// state. An empty ParentID or Name and nil Permissions keep the current
	// value.
	Folder *folder.Folder

	// Subscribed changes the subscription when non-nil.
	Subscribed *bool

	// IfUnmodifiedSince rejects the update with ErrConcurrentModification
	// when the folder changed after this time. Zero disables the check.
	IfUnmodifiedSince time.Time

	// AutoRename picks a free name instead of failing with ErrEqualName.
	AutoRename bool
}

// Update applies the most significant change carried by the request: a
// move (possibly with a new name) wins over a rename, which wins over a
// permission change, which wins over a subscription change.
func (s *Service) Update(ctx context.Context, session *folder.Session, req UpdateRequest) error {
	_, err := s.run(ctx, "update", session, true, func(o *operation) error {
		return o.update(req)
	})
	return err
}

func (o *operation) update(req UpdateRequest) error {
	in := req.Folder
	if in == nil || in.ID == "" {
		return folder.NewError(folder.ErrMissingParameter, "", "", "folder id is required")
	}
	tree, err := o.tree(in.TreeID)
	if err != nil {
		return err
	}
	st, f, perm, err := o.loadVisible(tree.ID, in.ID)
	if err != nil {
		return err
	}
	if err := checkUnmodified(f, req.IfUnmodifiedSince); err != nil {
		return err
	}

	switch {
	case in.ParentID != "" && in.ParentID != f.ParentID:
		name := f.Name
		if in.Name != "" {
			name = in.Name
		}
		return o.move(tree, st, f, perm, in.ParentID, name, req.AutoRename)
	case in.Name != "" && in.Name != f.Name:
		return o.rename(tree, st, f, perm, in.Name, req.AutoRename)
	case in.Permissions != nil && permission.Changed(f.Permissions, in.Permissions):
		return o.changePermissions(tree, st, f, perm, in.Permissions)
	case req.Subscribed != nil && *req.Subscribed != f.Subscribed:
		upd := f.Clone()
		upd.Subscribed = *req.Subscribed
		return st.UpdateFolder(o.ctx, upd, o.params)
	}
	logger.Debug("Update of %s/%s carries no change", tree.ID, f.ID)
	return nil
}

func fixedFolder(f *folder.Folder) bool {
	return folder.IsSystemFolderID(f.ID) || f.Type == folder.TypeSystem || f.Type == folder.TypeTrash
}

// move re-parents f below newParentID.
func (o *operation) move(tree folder.Tree, st folder.Storage, f *folder.Folder, perm folder.Permission, newParentID, name string, autoRename bool) error {
	if fixedFolder(f) || f.Default {
		return folder.NewError(folder.ErrFolderNotMoveable, tree.ID, f.ID, "folder cannot be moved")
	}
	if !perm.Admin {
		return folder.NewError(folder.ErrFolderNotMoveable, tree.ID, f.ID, "user %d has no admin right", o.userID())
	}
	if f.ContentType == folder.ContentMail && newParentID == folder.PrivateID {
		if ap, ok := st.(folder.AccountRootProvider); ok {
			newParentID = ap.AccountRootID(tree.ID)
		}
	}

	dstStorage, dst, dstPerm, err := o.loadVisible(tree.ID, newParentID)
	if err != nil {
		return err
	}
	if !dstPerm.CanCreateSubfolders() {
		return folder.NewError(folder.ErrNoCreateSubfolders, tree.ID, dst.ID, "user %d may not create subfolders", o.userID())
	}
	if f.ContentType == folder.ContentMail && (dst.ID == folder.PublicID || dst.Type == folder.TypePublic) {
		return folder.NewError(folder.ErrNoPublicMailFolder, tree.ID, f.ID, "mail folders cannot be public")
	}
	if err := o.checkNotDescendant(tree.ID, f.ID, dst); err != nil {
		return err
	}
	if err := o.validateName(tree.ID, dst.ID, name); err != nil {
		return err
	}
	name, err = o.resolveName(tree.ID, dst, name, f.ContentType, f.ID, autoRename)
	if err != nil {
		return err
	}

	if tree.Virtual {
		return o.moveVirtual(tree, st, f, dstStorage, dst, name)
	}

	target, err := o.moveTarget(tree.ID, st, dstStorage, dst.ID, f.ContentType)
	if err != nil {
		return err
	}
	if target == st {
		upd := f.Clone()
		upd.ParentID = dst.ID
		upd.Name = name
		return st.UpdateFolder(o.ctx, upd, o.params)
	}
	_, err = o.moveAcross(tree.ID, tree.ID, st, target, f.ID, dst.ID, name)
	return err
}

// moveTarget returns the storage a folder of current moves into: current
// itself when it can hold the folder below parentID, otherwise the storage
// a new folder would be created in.
func (o *operation) moveTarget(treeID string, current, parentStorage folder.Storage, parentID string, ct folder.ContentType) (folder.Storage, error) {
	if current.Scope().ServesParent(parentID) && folder.SupportsContentType(current, ct) {
		return current, nil
	}
	target, err := o.targetStorage(treeID, parentStorage, parentID, ct)
	if err != nil {
		return nil, err
	}
	if err := o.open(target); err != nil {
		return nil, err
	}
	return target, nil
}

// checkNotDescendant fails with ErrMoveNotPermitted when dst is id or lies
// below it.
func (o *operation) checkNotDescendant(treeID, id string, dst *folder.Folder) error {
	cur := dst
	for depth := 0; depth < maxDepth; depth++ {
		if cur.ID == id {
			return folder.NewError(folder.ErrMoveNotPermitted, treeID, id, "cannot move a folder below itself")
		}
		if cur.ParentID == "" {
			return nil
		}
		_, parent, err := o.load(treeID, cur.ParentID)
		if err != nil {
			if folder.IsNotFound(err) || folder.IsCode(err, folder.ErrNoStorageForID) {
				return nil
			}
			return err
		}
		cur = parent
	}
	return nil
}

// moveWithin moves a folder inside its storage and returns old id -> new id
// for the whole subtree (storages may derive ids from names).
func (o *operation) moveWithin(treeID string, s folder.Storage, id, parentID, name string) (map[string]string, error) {
	before, err := o.snapshot(treeID, s, id)
	if err != nil {
		return nil, err
	}
	upd := before.Folder.Clone()
	upd.ParentID = parentID
	upd.Name = name
	if err := s.UpdateFolder(o.ctx, upd, o.params); err != nil {
		return nil, err
	}
	if upd.ID == id {
		return identityMapping(before), nil
	}
	after, err := o.snapshot(treeID, s, upd.ID)
	if err != nil {
		return nil, err
	}
	return remapTree(before, after), nil
}

// moveAcross copies the subtree of id from src into dst below parentID,
// deletes the source subtree and returns old id -> new id.
func (o *operation) moveAcross(srcTree, dstTree string, src, dst folder.Storage, id, parentID, name string) (map[string]string, error) {
	before, err := o.snapshot(srcTree, src, id)
	if err != nil {
		return nil, err
	}
	if err := o.open(dst); err != nil {
		return nil, err
	}
	newID, err := o.copySnapshot(dstTree, before, dst, parentID, name, nil, false)
	if err != nil {
		return nil, err
	}
	after, err := o.snapshot(dstTree, dst, newID)
	if err != nil {
		return nil, err
	}
	mapping := remapTree(before, after)
	if err := o.deleteSnapshot(srcTree, before); err != nil {
		return nil, err
	}
	logger.Debug("Moved subtree %s from storage %s to %s as %s (%d folders)",
		id, src.Name(), dst.Name(), newID, len(mapping))
	return mapping, nil
}

// moveVirtual executes a move in a virtual tree following planVirtualMove.
func (o *operation) moveVirtual(tree folder.Tree, srcV folder.Storage, f *folder.Folder, dstStorage folder.Storage, dst *folder.Folder, name string) error {
	realTree := tree.RealTreeID
	dstV, err := o.moveTarget(tree.ID, srcV, dstStorage, dst.ID, f.ContentType)
	if err != nil {
		return err
	}

	realSrc, hasReal, err := o.realCounterpart(realTree, f.ID)
	if err != nil {
		return err
	}
	realParentStorage, hasRealParent, err := o.realCounterpart(realTree, dst.ID)
	if err != nil {
		return err
	}
	var realDst folder.Storage
	if hasReal && hasRealParent {
		if realDst, err = o.moveTarget(realTree, realSrc, realParentStorage, dst.ID, f.ContentType); err != nil {
			var fe *folder.Error
			if !errors.As(err, &fe) || fe.Code != folder.ErrInvalidContentType {
				return err
			}
			realDst = nil
		}
	}

	vRel := virtualDifferent
	switch {
	case hasReal && realSrc == srcV:
		vRel = virtualUnified
	case srcV == dstV:
		vRel = virtualSame
	}
	rRel := realNone
	switch {
	case realDst == nil:
	case realDst == realSrc:
		rRel = realSame
	default:
		rRel = realDifferent
	}

	plan, err := planVirtualMove(vRel, rRel)
	if err != nil {
		var fe *folder.Error
		if errors.As(err, &fe) {
			fe.TreeID, fe.FolderID = tree.ID, f.ID
		}
		return err
	}
	logger.Debug("Moving %s/%s below %s (virtual=%s, real=%s)", tree.ID, f.ID, dst.ID, vRel, rRel)

	vSnap, err := o.snapshot(tree.ID, srcV, f.ID)
	if err != nil {
		return err
	}
	mapping := identityMapping(vSnap)

	// Unified storages hold the folder under the virtual tree id.
	srcTree := realTree
	if vRel == virtualUnified {
		srcTree = tree.ID
	}

	var moved map[string]string
	switch {
	case plan.MoveReal:
		realName := name
		if vRel != virtualUnified {
			if realName, err = o.realName(realTree, realParentStorage, dst.ID, name, f); err != nil {
				return err
			}
		}
		moved, err = o.moveWithin(srcTree, realSrc, f.ID, dst.ID, realName)
	case plan.CopyReal:
		realName, nerr := o.realName(realTree, realParentStorage, dst.ID, name, f)
		if nerr != nil {
			return nerr
		}
		moved, err = o.moveAcross(srcTree, realTree, realSrc, realDst, f.ID, dst.ID, realName)
	}
	if err != nil {
		return err
	}
	for from, to := range moved {
		mapping[from] = to
	}

	if plan.UpdateVirtual {
		if isIdentity(mapping) {
			upd := f.Clone()
			upd.ParentID = dst.ID
			upd.Name = name
			return srcV.UpdateFolder(o.ctx, upd, o.params)
		}
		return o.recreateVirtual(tree.ID, vSnap, srcV, dst.ID, name, mapping)
	}
	if plan.RecreateVirtual {
		if vRel == virtualUnified {
			if dstV == realDst {
				return nil
			}
			_, err := o.copySnapshot(tree.ID, vSnap, dstV, dst.ID, name, mapping, true)
			return err
		}
		return o.recreateVirtual(tree.ID, vSnap, dstV, dst.ID, name, mapping)
	}
	return nil
}

// recreateVirtual replaces the virtual entries of a snapshot with entries
// in dst carrying the mapped ids.
func (o *operation) recreateVirtual(treeID string, snap *treeNode, dst folder.Storage, parentID, name string, mapping map[string]string) error {
	if err := o.deleteSnapshot(treeID, snap); err != nil {
		return err
	}
	if err := o.open(dst); err != nil {
		return err
	}
	_, err := o.copySnapshot(treeID, snap, dst, parentID, name, mapping, true)
	return err
}

// realName picks a free name for f below parentID in the real tree, loading
// the parent from s. Names in the real tree are always disambiguated
// automatically.
func (o *operation) realName(realTree string, s folder.Storage, parentID, name string, f *folder.Folder) (string, error) {
	parent, err := s.GetFolder(o.ctx, realTree, parentID, o.params)
	if err != nil {
		return "", err
	}
	return o.resolveName(realTree, parent, name, f.ContentType, f.ID, true)
}

func isIdentity(mapping map[string]string) bool {
	for from, to := range mapping {
		if from != to {
			return false
		}
	}
	return true
}

// rename changes the name of f in place.
func (o *operation) rename(tree folder.Tree, st folder.Storage, f *folder.Folder, perm folder.Permission, name string, autoRename bool) error {
	if fixedFolder(f) {
		return folder.NewError(folder.ErrFolderNotMoveable, tree.ID, f.ID, "folder cannot be renamed")
	}
	if !perm.Admin {
		return folder.NewError(folder.ErrNoAdminAccess, tree.ID, f.ID, "user %d has no admin right", o.userID())
	}
	if err := o.validateName(tree.ID, f.ParentID, name); err != nil {
		return err
	}
	_, parent, err := o.load(tree.ID, f.ParentID)
	if err != nil {
		return err
	}
	name, err = o.resolveName(tree.ID, parent, name, f.ContentType, f.ID, autoRename)
	if err != nil {
		return err
	}

	upd := f.Clone()
	upd.Name = name
	if !tree.Virtual {
		return st.UpdateFolder(o.ctx, upd, o.params)
	}

	realTree := tree.RealTreeID
	realSrc, hasReal, err := o.realCounterpart(realTree, f.ID)
	if err != nil {
		return err
	}
	if !hasReal || realSrc == st {
		return st.UpdateFolder(o.ctx, upd, o.params)
	}

	vSnap, err := o.snapshot(tree.ID, st, f.ID)
	if err != nil {
		return err
	}
	backing, err := realSrc.GetFolder(o.ctx, realTree, f.ID, o.params)
	if err != nil {
		return err
	}
	parentStorage, err := o.storageFor(realTree, backing.ParentID)
	if err != nil {
		return err
	}
	realName, err := o.realName(realTree, parentStorage, backing.ParentID, name, backing)
	if err != nil {
		return err
	}
	moved, err := o.moveWithin(realTree, realSrc, f.ID, backing.ParentID, realName)
	if err != nil {
		return err
	}
	if isIdentity(moved) {
		return st.UpdateFolder(o.ctx, upd, o.params)
	}

	mapping := identityMapping(vSnap)
	for from, to := range moved {
		mapping[from] = to
	}
	return o.recreateVirtual(tree.ID, vSnap, st, f.ParentID, name, mapping)
}

// changePermissions replaces the user-assigned permissions of f. Implicit
// system entries are kept.
func (o *operation) changePermissions(tree folder.Tree, st folder.Storage, f *folder.Folder, perm folder.Permission, incoming []folder.Permission) error {
	if !perm.Admin {
		return folder.NewError(folder.ErrNoAdminAccess, tree.ID, f.ID, "user %d has no admin right", o.userID())
	}
	upd := f.Clone()
	upd.Permissions = permission.MergeSystem(f.Permissions, incoming)
	if err := st.UpdateFolder(o.ctx, upd, o.params); err != nil {
		return err
	}
	if !tree.Virtual {
		return nil
	}

	realSrc, hasReal, err := o.realCounterpart(tree.RealTreeID, f.ID)
	if err != nil || !hasReal || realSrc == st {
		return err
	}
	backing, err := realSrc.GetFolder(o.ctx, tree.RealTreeID, f.ID, o.params)
	if err != nil {
		return err
	}
	backing.Permissions = permission.MergeSystem(backing.Permissions, incoming)
	return realSrc.UpdateFolder(o.ctx, backing, o.params)
}
