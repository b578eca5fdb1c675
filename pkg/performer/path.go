package performer

import (
	"context"
	"strings"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// Path returns the chain of folders from folderID up to the root of the
// tree, starting with folderID itself.
//
// Shared folders of another user are reached through that user's shared
// container ("u:<id>") below the shared root.
func (s *Service) Path(ctx context.Context, session *folder.Session, treeID, folderID string) ([]*folder.UserizedFolder, error) {
	var out []*folder.UserizedFolder
	_, err := s.run(ctx, "path", session, false, func(o *operation) error {
		path, err := o.path(treeID, folderID)
		out = path
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *operation) path(treeID, folderID string) ([]*folder.UserizedFolder, error) {
	if _, err := o.tree(treeID); err != nil {
		return nil, err
	}

	var out []*folder.UserizedFolder
	id := folderID
	for depth := 0; id != ""; depth++ {
		if depth >= maxDepth {
			return nil, folder.NewError(folder.ErrUnexpected, treeID, folderID, "folder path exceeds %d levels", maxDepth)
		}

		if strings.HasPrefix(id, folder.SharedUserPrefix) {
			out = append(out, o.sharedContainer(treeID, id))
			id = folder.SharedID
			continue
		}

		st, f, perm, err := o.loadVisible(treeID, id)
		if err != nil {
			return nil, err
		}
		u, err := o.userize(st, f, perm, treeID, true, publicSemantics(f))
		if err != nil {
			return nil, err
		}
		out = append(out, u)
		id = u.ParentID
	}
	return out, nil
}

// sharedContainer synthesizes the per-user container holding the folders a
// user shares with the actor.
func (o *operation) sharedContainer(treeID, id string) *folder.UserizedFolder {
	session := o.session()
	return &folder.UserizedFolder{
		Folder: folder.Folder{
			ID:           id,
			TreeID:       treeID,
			ParentID:     folder.SharedID,
			Name:         strings.TrimPrefix(id, folder.SharedUserPrefix),
			ContentType:  folder.ContentSystem,
			Type:         folder.TypeSystem,
			SubfolderIDs: []string{folder.DummySubfolderID},
			Permissions:  []folder.Permission{folder.SystemReadPermission()},
		},
		Locale:        session.Locale,
		OwnPermission: folder.SystemReadPermission(),
		Subfolders:    folder.SubfoldersUnknownNonEmpty,
	}
}
