package performer

import (
	"context"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// ListResult is the outcome of an operation returning several folders.
// Warnings lists the folders or storages that had to be skipped.
type ListResult struct {
	Folders  []*folder.UserizedFolder
	Warnings []folder.Warning
}

// Get returns a single folder as seen by the actor.
//
// Returns:
//   - *folder.UserizedFolder: The folder, with every visible subfolder
//   - error: ErrFolderNotVisible, ErrNotFound, ErrNoStorageForID
func (s *Service) Get(ctx context.Context, session *folder.Session, treeID, folderID string) (*folder.UserizedFolder, error) {
	var out *folder.UserizedFolder
	_, err := s.run(ctx, "get", session, false, func(o *operation) error {
		u, err := o.get(treeID, folderID)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *operation) get(treeID, folderID string) (*folder.UserizedFolder, error) {
	if _, err := o.tree(treeID); err != nil {
		return nil, err
	}
	st, f, perm, err := o.loadVisible(treeID, folderID)
	if err != nil {
		return nil, err
	}
	return o.userize(st, f, perm, treeID, true, publicSemantics(f))
}

// List returns the visible children of a folder in display order.
//
// With all unset only subscribed folders, or folders with subscribed
// descendants, are returned. Children that cannot be loaded are skipped
// and reported in ListResult.Warnings; the call only fails when the parent
// is not accessible or every storage failed.
func (s *Service) List(ctx context.Context, session *folder.Session, treeID, parentID string, all bool) (*ListResult, error) {
	res := &ListResult{}
	warnings, err := s.run(ctx, "list", session, false, func(o *operation) error {
		folders, err := o.list(treeID, parentID, all)
		res.Folders = folders
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}

func (o *operation) list(treeID, parentID string, all bool) ([]*folder.UserizedFolder, error) {
	if _, err := o.tree(treeID); err != nil {
		return nil, err
	}
	_, parent, _, err := o.loadVisible(treeID, parentID)
	if err != nil {
		return nil, err
	}
	ids, err := o.subfolderIDs(treeID, parent)
	if err != nil {
		return nil, err
	}
	return o.loadUserized(treeID, ids, all, func(f *folder.Folder, perm folder.Permission) bool {
		return perm.Visible() && (all || f.HasSubscription())
	})
}
