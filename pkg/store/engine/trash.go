package engine

import (
	"context"
	"strings"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// TrashFolder implements folder.TrashAware. The folder is moved below the
// trash folder, remembering its origin. A folder already inside the trash is
// deleted together with its descendants.
func (s *Store) TrashFolder(ctx context.Context, treeID, folderID string, params *folder.StorageParameters) error {
	if s.opts.TrashFolderID == "" {
		return folder.NewError(folder.ErrUnsupportedOperation, treeID, folderID, "storage %s has no trash", s.opts.Name)
	}

	return s.write(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		if folderID == s.opts.TrashFolderID {
			return folder.NewError(folder.ErrFolderNotDeleteable, treeID, folderID, "the trash folder cannot be trashed")
		}

		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		byID := make(map[string]*Record, len(all))
		for _, r := range all {
			byID[r.Folder.ID] = r
		}
		if _, ok := byID[s.opts.TrashFolderID]; !ok {
			return folder.NotFound(treeID, s.opts.TrashFolderID)
		}

		if insideTrash(rec, byID, s.opts.TrashFolderID) {
			children := childIndex(all)
			subtree := descendants(folderID, children)
			for i := len(subtree) - 1; i >= 0; i-- {
				if err := tx.Delete(ctx, treeID, subtree[i].Folder.ID, now(params)); err != nil {
					return err
				}
			}
			logger.Debug("Storage %s: purged %s/%s from trash", s.opts.Name, treeID, folderID)
			return tx.Delete(ctx, treeID, folderID, now(params))
		}

		taken := make(map[string]bool)
		for _, r := range all {
			if r.Folder.ParentID == s.opts.TrashFolderID {
				taken[strings.ToLower(r.Folder.Name)] = true
			}
		}
		name := rec.Folder.Name
		style := rec.Folder.ContentType.RenameStyle()
		for n := 2; taken[strings.ToLower(name)]; n++ {
			name = style.Apply(rec.Folder.Name, n)
		}

		rec.TrashOrigin = rec.Folder.ParentID
		rec.Folder.ParentID = s.opts.TrashFolderID
		rec.Folder.Name = name
		rec.Folder.LastModified = now(params)
		rec.Folder.ModifiedBy = params.UserID()
		logger.Debug("Storage %s: trashed %s/%s (origin %s)", s.opts.Name, treeID, folderID, rec.TrashOrigin)
		return s.put(ctx, tx, treeID, rec)
	})
}

func insideTrash(rec *Record, byID map[string]*Record, trashID string) bool {
	seen := make(map[string]bool)
	for parent := rec.Folder.ParentID; parent != "" && !seen[parent]; {
		if parent == trashID {
			return true
		}
		seen[parent] = true
		p, ok := byID[parent]
		if !ok {
			return false
		}
		parent = p.Folder.ParentID
	}
	return false
}

// RestoreFromTrash implements folder.RestoreAware.
func (s *Store) RestoreFromTrash(ctx context.Context, treeID string, folderIDs []string, defaultDestination string, params *folder.StorageParameters) (map[string]string, error) {
	restored := make(map[string]string, len(folderIDs))
	err := s.write(ctx, params, func(tx Tx) error {
		for _, id := range folderIDs {
			rec, err := s.get(ctx, tx, treeID, id)
			if err != nil {
				return err
			}
			if rec.TrashOrigin == "" {
				return folder.NewError(folder.ErrMoveNotPermitted, treeID, id, "folder is not in the trash")
			}

			dest := rec.TrashOrigin
			if !folder.IsSystemFolderID(dest) {
				if _, err := s.get(ctx, tx, treeID, dest); err != nil {
					if !folder.IsNotFound(err) {
						return err
					}
					if defaultDestination == "" {
						return folder.NewError(folder.ErrMissingParameter, treeID, id, "original parent %s is gone and no destination was given", dest)
					}
					dest = defaultDestination
				}
			}

			rec.Folder.ParentID = dest
			rec.TrashOrigin = ""
			rec.Folder.LastModified = now(params)
			if err := s.put(ctx, tx, treeID, rec); err != nil {
				return err
			}
			restored[id] = dest
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}
