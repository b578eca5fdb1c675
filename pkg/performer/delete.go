package performer

import (
	"context"
	"time"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// Delete hard-deletes a folder and its subfolders, children before parents.
//
// In a virtual tree the real counterpart of each folder is deleted before
// its virtual entry.
func (s *Service) Delete(ctx context.Context, session *folder.Session, treeID, folderID string, ifUnmodifiedSince time.Time) error {
	_, err := s.run(ctx, "delete", session, true, func(o *operation) error {
		return o.remove(treeID, folderID, ifUnmodifiedSince, false)
	})
	return err
}

// Trash moves a folder into the trash of the storage holding it. Storages
// without a trash fail with ErrUnsupportedOperation.
func (s *Service) Trash(ctx context.Context, session *folder.Session, treeID, folderID string, ifUnmodifiedSince time.Time) error {
	_, err := s.run(ctx, "trash", session, true, func(o *operation) error {
		return o.remove(treeID, folderID, ifUnmodifiedSince, true)
	})
	return err
}

func (o *operation) remove(treeID, folderID string, ifUnmodifiedSince time.Time, trash bool) error {
	tree, err := o.tree(treeID)
	if err != nil {
		return err
	}
	st, f, perm, err := o.loadVisible(treeID, folderID)
	if err != nil {
		return err
	}
	if err := checkUnmodified(f, ifUnmodifiedSince); err != nil {
		return err
	}
	if fixedFolder(f) || f.Default {
		return folder.NewError(folder.ErrFolderNotDeleteable, treeID, f.ID, "folder cannot be deleted")
	}
	if !perm.Admin {
		return folder.NewError(folder.ErrFolderNotDeleteable, treeID, f.ID, "user %d has no admin right", o.userID())
	}

	realTree := treeID
	realSrc, hasReal := st, true
	if tree.Virtual {
		realTree = tree.RealTreeID
		if realSrc, hasReal, err = o.realCounterpart(realTree, f.ID); err != nil {
			return err
		}
		if hasReal && realSrc == st {
			realTree = treeID
		}
	}

	objects, objectsTree := st, treeID
	if hasReal {
		objects, objectsTree = realSrc, realTree
	}
	if err := o.checkDeleteRights(objects, objectsTree, f, perm); err != nil {
		return err
	}

	if trash {
		return o.trash(tree, st, f, realTree, realSrc, hasReal)
	}
	return o.deleteTree(tree, st, f)
}

// checkDeleteRights verifies the actor may delete the contents of f.
func (o *operation) checkDeleteRights(s folder.Storage, treeID string, f *folder.Folder, perm folder.Permission) error {
	switch perm.Delete {
	case folder.ObjectAll:
		return nil
	case folder.ObjectOwn:
		foreign, err := s.ContainsForeignObjects(o.ctx, treeID, f.ID, o.params)
		if err != nil {
			return err
		}
		if foreign {
			return folder.NewError(folder.ErrFolderNotDeleteable, treeID, f.ID, "folder holds objects of other users")
		}
		return nil
	default:
		empty, err := s.IsEmpty(o.ctx, treeID, f.ID, o.params)
		if err != nil {
			return err
		}
		if !empty {
			return folder.NewError(folder.ErrFolderNotDeleteable, treeID, f.ID, "folder is not empty")
		}
		return nil
	}
}

// deleteTree deletes f and its subfolders, children first. Each subfolder
// is checked for deletability in its own storage.
func (o *operation) deleteTree(tree folder.Tree, st folder.Storage, f *folder.Folder) error {
	snap, err := o.snapshot(tree.ID, st, f.ID)
	if err != nil {
		return err
	}

	for _, n := range snap.postOrder() {
		if n.ID != f.ID {
			if err := o.checkSubfolder(tree.ID, n); err != nil {
				return err
			}
		}
		if tree.Virtual {
			if err := o.deleteReal(tree, n); err != nil {
				return err
			}
		}
		if err := n.Storage.DeleteFolder(o.ctx, tree.ID, n.ID, o.params); err != nil {
			return err
		}
	}
	logger.Debug("Deleted %s/%s with %d subfolders", tree.ID, f.ID, len(snap.postOrder())-1)
	return nil
}

// deleteReal deletes the real counterpart of a virtual entry, including
// real subfolders not mirrored in the virtual tree. Every real subfolder is
// checked before anything is deleted.
func (o *operation) deleteReal(tree folder.Tree, n *treeNode) error {
	realSrc, hasReal, err := o.realCounterpart(tree.RealTreeID, n.ID)
	if err != nil || !hasReal || realSrc == n.Storage {
		return err
	}
	snap, err := o.snapshot(tree.RealTreeID, realSrc, n.ID)
	if err != nil {
		return err
	}
	for _, c := range snap.postOrder() {
		if c == snap {
			continue
		}
		if err := o.checkSubfolder(tree.RealTreeID, c); err != nil {
			return err
		}
	}
	return o.deleteSnapshot(tree.RealTreeID, snap)
}

// checkSubfolder verifies a subfolder of a deleted folder may be deleted
// along with it.
func (o *operation) checkSubfolder(treeID string, n *treeNode) error {
	if fixedFolder(n.Folder) || n.Folder.Default {
		return folder.NewError(folder.ErrFolderNotDeleteable, treeID, n.ID, "subfolder cannot be deleted")
	}
	perm, err := o.permission(n.Folder)
	if err != nil {
		return err
	}
	return o.checkDeleteRights(n.Storage, treeID, n.Folder, perm)
}

// trash moves the real folder into its storage's trash and drops the
// virtual entries referencing it.
func (o *operation) trash(tree folder.Tree, st folder.Storage, f *folder.Folder, realTree string, realSrc folder.Storage, hasReal bool) error {
	target, targetTree := st, tree.ID
	if hasReal {
		target, targetTree = realSrc, realTree
	}
	ta, ok := target.(folder.TrashAware)
	if !ok {
		return folder.NewError(folder.ErrUnsupportedOperation, tree.ID, f.ID, "storage %s has no trash", target.Name())
	}

	var virtual *treeNode
	if tree.Virtual && target != st {
		snap, err := o.snapshot(tree.ID, st, f.ID)
		if err != nil {
			return err
		}
		virtual = snap
	}

	if err := ta.TrashFolder(o.ctx, targetTree, f.ID, o.params); err != nil {
		return err
	}
	if virtual != nil {
		return o.deleteSnapshot(tree.ID, virtual)
	}
	return nil
}

// Clear deletes the contents of a folder, keeping the folder and its
// subfolders.
func (s *Service) Clear(ctx context.Context, session *folder.Session, treeID, folderID string) error {
	_, err := s.run(ctx, "clear", session, true, func(o *operation) error {
		tree, err := o.tree(treeID)
		if err != nil {
			return err
		}
		st, f, perm, err := o.loadVisible(treeID, folderID)
		if err != nil {
			return err
		}

		target, targetTree := st, treeID
		if tree.Virtual {
			realSrc, hasReal, err := o.realCounterpart(tree.RealTreeID, f.ID)
			if err != nil {
				return err
			}
			if hasReal {
				target, targetTree = realSrc, tree.RealTreeID
			}
		}
		if err := o.checkDeleteRights(target, targetTree, f, perm); err != nil {
			return err
		}
		return target.ClearFolder(o.ctx, targetTree, f.ID, o.params)
	})
	return err
}
