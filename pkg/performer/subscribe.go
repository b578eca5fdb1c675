package performer

import (
	"context"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// Subscribe mirrors a folder of sourceTree into the virtual targetTree below
// targetParent. Subscribing a folder already present in the target tree is
// a no-op.
func (s *Service) Subscribe(ctx context.Context, session *folder.Session, sourceTree, folderID, targetTree, targetParent string) error {
	_, err := s.run(ctx, "subscribe", session, true, func(o *operation) error {
		return o.subscribe(sourceTree, folderID, targetTree, targetParent)
	})
	return err
}

func (o *operation) subscribe(sourceTree, folderID, targetTree, targetParent string) error {
	if _, err := o.tree(sourceTree); err != nil {
		return err
	}
	target, err := o.tree(targetTree)
	if err != nil {
		return err
	}
	if !target.Virtual {
		return folder.NewError(folder.ErrUnsupportedOperation, targetTree, folderID, "folders can only be subscribed into a virtual tree")
	}

	srcStorage, src, _, err := o.loadVisible(sourceTree, folderID)
	if err != nil {
		return err
	}
	parentStorage, parent, parentPerm, err := o.loadVisible(targetTree, targetParent)
	if err != nil {
		return err
	}
	if !parentPerm.CanCreateSubfolders() {
		return folder.NewError(folder.ErrNoCreateSubfolders, targetTree, targetParent, "user %d may not create subfolders", o.userID())
	}

	vTarget, err := o.targetStorage(targetTree, parentStorage, parent.ID, src.ContentType)
	if err != nil {
		return err
	}
	if vTarget == srcStorage {
		return nil
	}
	if err := o.open(vTarget); err != nil {
		return err
	}
	exists, err := vTarget.ContainsFolder(o.ctx, targetTree, src.ID, folder.KindWorking, o.params)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("Folder %s already subscribed into tree %s", src.ID, targetTree)
		return nil
	}

	name, err := o.resolveName(targetTree, parent, src.Name, src.ContentType, "", true)
	if err != nil {
		return err
	}
	entry := src.Clone()
	entry.TreeID = targetTree
	entry.ParentID = parent.ID
	entry.Name = name
	entry.SubfolderIDs = nil
	entry.Subscribed = true
	entry.Default = false
	return vTarget.CreateFolder(o.ctx, entry, o.params)
}

// Unsubscribe removes a folder and its descendants from a virtual tree,
// children first. Real folders are not touched.
func (s *Service) Unsubscribe(ctx context.Context, session *folder.Session, treeID, folderID string) error {
	_, err := s.run(ctx, "unsubscribe", session, true, func(o *operation) error {
		tree, err := o.tree(treeID)
		if err != nil {
			return err
		}
		if !tree.Virtual {
			return folder.NewError(folder.ErrUnsupportedOperation, treeID, folderID, "only virtual tree entries can be unsubscribed")
		}
		st, f, _, err := o.loadVisible(treeID, folderID)
		if err != nil {
			return err
		}
		if fixedFolder(f) {
			return folder.NewError(folder.ErrFolderNotDeleteable, treeID, f.ID, "system folders cannot be unsubscribed")
		}

		snap, err := o.snapshot(treeID, st, f.ID)
		if err != nil {
			return err
		}
		for _, n := range snap.postOrder() {
			realSrc, hasReal, err := o.realCounterpart(tree.RealTreeID, n.ID)
			if err != nil {
				return err
			}
			if hasReal && realSrc == n.Storage {
				return folder.NewError(folder.ErrUnsupportedOperation, treeID, n.ID, "folder is served directly by storage %s", realSrc.Name())
			}
		}
		return o.deleteSnapshot(treeID, snap)
	})
	return err
}
