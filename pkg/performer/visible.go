package performer

import (
	"context"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// AllVisible walks the tree breadth-first from the root and returns every
// folder visible to the actor, subscribed or not. A non-empty ct keeps only
// folders of that content type.
func (s *Service) AllVisible(ctx context.Context, session *folder.Session, treeID string, ct folder.ContentType) (*ListResult, error) {
	res := &ListResult{}
	warnings, err := s.run(ctx, "all_visible", session, false, func(o *operation) error {
		folders, err := o.allVisible(treeID, ct)
		res.Folders = folders
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}

func (o *operation) allVisible(treeID string, ct folder.ContentType) ([]*folder.UserizedFolder, error) {
	root, err := o.get(treeID, folder.RootID)
	if err != nil {
		return nil, err
	}

	var out []*folder.UserizedFolder
	keep := func(u *folder.UserizedFolder) {
		if ct == "" || u.ContentType == ct {
			out = append(out, u)
		}
	}
	keep(root)

	visited := map[string]bool{root.ID: true}
	queue := []string{root.ID}
	for depth := 0; len(queue) > 0 && depth < maxDepth; depth++ {
		var next []string
		for _, id := range queue {
			children, err := o.list(treeID, id, true)
			if err != nil {
				o.params.AddWarning(folder.WarningFromError(err, treeID, id))
				continue
			}
			for _, c := range children {
				if visited[c.ID] {
					continue
				}
				visited[c.ID] = true
				keep(c)
				if c.Subfolders == folder.SubfoldersComputed || c.Subfolders == folder.SubfoldersUnknownNonEmpty {
					next = append(next, c.ID)
				}
			}
		}
		queue = next
	}
	return out, nil
}

// DefaultFolder returns the actor's default folder of a content type.
// An empty typ selects the private default folder.
func (s *Service) DefaultFolder(ctx context.Context, session *folder.Session, treeID string, ct folder.ContentType, typ folder.Type) (*folder.UserizedFolder, error) {
	var out *folder.UserizedFolder
	_, err := s.run(ctx, "default_folder", session, false, func(o *operation) error {
		if _, err := o.tree(treeID); err != nil {
			return err
		}
		if !ct.Valid() {
			return folder.NewError(folder.ErrInvalidContentType, treeID, "", "invalid content type %q", ct)
		}
		if typ == "" {
			typ = folder.TypePrivate
		}
		st, err := o.svc.registry.StorageForContentType(treeID, ct)
		if err != nil {
			return folder.NewError(folder.ErrNoDefaultFolder, treeID, "", "no storage holds %s folders", ct)
		}
		if err := o.open(st); err != nil {
			return err
		}
		id, err := st.DefaultFolderID(o.ctx, treeID, ct, typ, o.params)
		if err != nil {
			return err
		}
		u, err := o.get(treeID, id)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UserSharedFolders returns the folders the actor shares with other users.
func (s *Service) UserSharedFolders(ctx context.Context, session *folder.Session, treeID string, ct folder.ContentType) (*ListResult, error) {
	var cts []folder.ContentType
	if ct != "" {
		cts = []folder.ContentType{ct}
	}
	return s.enumerate(ctx, session, "user_shared", treeID, func(o *operation, st folder.Storage) ([]folder.SortableID, bool, error) {
		e, ok := st.(folder.UserSharedEnumerator)
		if !ok {
			return nil, false, nil
		}
		ids, err := e.UserSharedFolderIDs(o.ctx, treeID, cts, o.params)
		return ids, true, err
	})
}

// VisibleFolders returns the folders of a content type and folder type the
// actor can see. Shared folders are only enumerated for actors with full
// shared-folder access.
func (s *Service) VisibleFolders(ctx context.Context, session *folder.Session, treeID string, ct folder.ContentType, typ folder.Type) (*ListResult, error) {
	if typ == folder.TypeShared && session != nil && !session.FullSharedFolderAccess {
		if _, err := s.registry.Tree(treeID); err != nil {
			return nil, err
		}
		return &ListResult{}, nil
	}
	return s.enumerate(ctx, session, "visible", treeID, func(o *operation, st folder.Storage) ([]folder.SortableID, bool, error) {
		e, ok := st.(folder.VisibleEnumerator)
		if !ok {
			return nil, false, nil
		}
		ids, err := e.VisibleFolderIDs(o.ctx, treeID, ct, typ, o.params)
		return ids, true, err
	})
}

// enumerator queries one storage. ok is false when the storage lacks the
// capability.
type enumerator func(o *operation, st folder.Storage) (ids []folder.SortableID, ok bool, err error)

// enumerate collects ids from every capable storage of the tree (one task
// per storage), sorts them and returns the visible folders in that order.
func (s *Service) enumerate(ctx context.Context, session *folder.Session, name, treeID string, fn enumerator) (*ListResult, error) {
	res := &ListResult{}
	warnings, err := s.run(ctx, name, session, false, func(o *operation) error {
		if _, err := o.tree(treeID); err != nil {
			return err
		}

		storages := o.svc.registry.AllStorages(treeID)
		results := make([][]folder.SortableID, len(storages))
		err := o.fanOut(len(storages), func(i int, t *operation) error {
			st := storages[i]
			if err := t.open(st); err != nil {
				t.params.AddWarning(folder.WarningFromError(err, treeID, ""))
				return nil
			}
			ids, _, err := fn(t, st)
			if err != nil {
				t.params.AddWarning(folder.WarningFromError(err, treeID, ""))
				return nil
			}
			results[i] = ids
			return nil
		})
		if err != nil {
			return err
		}

		var merged []folder.SortableID
		seen := make(map[string]bool)
		for _, ids := range results {
			for _, id := range ids {
				if !seen[id.ID] {
					seen[id.ID] = true
					merged = append(merged, id)
				}
			}
		}
		folder.SortIDs(merged)

		folders, err := o.loadUserized(treeID, folder.IDs(merged), false, func(_ *folder.Folder, perm folder.Permission) bool {
			return perm.Visible()
		})
		res.Folders = folders
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}
