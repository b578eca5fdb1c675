package engine

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// dynamic reports whether the subfolders of f are computed by the caller
// from every storage serving it as parent.
func dynamic(f *folder.Folder) bool {
	return f.Type == folder.TypeSystem || f.Type == folder.TypePublic
}

func needsChildren(rec *Record) bool {
	return !rec.FixedSubfolders && !dynamic(rec.Folder)
}

// present converts a record into the folder handed out to callers.
func present(rec *Record, all []*Record) *folder.Folder {
	f := rec.Folder.Clone()
	switch {
	case rec.FixedSubfolders:
	case dynamic(f):
		f.SubfolderIDs = nil
	default:
		f.SubfolderIDs = folder.IDs(sortedChildren(f.ID, all, 0))
	}
	if all != nil {
		f.SubscribedSubfolders = hasSubscribedDescendant(f.ID, childIndex(all), make(map[string]bool))
	}
	return f
}

func sortedChildren(parentID string, all []*Record, priority int) []folder.SortableID {
	ids := make([]folder.SortableID, 0)
	for _, r := range all {
		if r.Folder.ParentID == parentID && r.Folder.ID != parentID {
			ids = append(ids, folder.SortableID{ID: r.Folder.ID, Name: r.Folder.Name, Priority: priority})
		}
	}
	folder.SortIDs(ids)
	return ids
}

func childIndex(all []*Record) map[string][]*Record {
	idx := make(map[string][]*Record)
	for _, r := range all {
		if r.Folder.ParentID != r.Folder.ID {
			idx[r.Folder.ParentID] = append(idx[r.Folder.ParentID], r)
		}
	}
	return idx
}

func hasSubscribedDescendant(id string, children map[string][]*Record, seen map[string]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	for _, c := range children[id] {
		if c.Folder.Subscribed || hasSubscribedDescendant(c.Folder.ID, children, seen) {
			return true
		}
	}
	return false
}

func descendants(rootID string, children map[string][]*Record) []*Record {
	var out []*Record
	seen := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range children[id] {
			if seen[c.Folder.ID] {
				continue
			}
			seen[c.Folder.ID] = true
			out = append(out, c)
			queue = append(queue, c.Folder.ID)
		}
	}
	return out
}

func allowed(ct folder.ContentType, cts []folder.ContentType) bool {
	return len(cts) == 0 || slices.Contains(cts, ct)
}

// GetSubfolders implements folder.Storage.
func (s *Store) GetSubfolders(ctx context.Context, treeID, parentID string, params *folder.StorageParameters) ([]folder.SortableID, error) {
	var out []folder.SortableID
	err := s.read(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		out = sortedChildren(parentID, all, s.opts.Priority)
		return nil
	})
	return out, err
}

// ModifiedFolderIDs implements folder.Storage.
func (s *Store) ModifiedFolderIDs(ctx context.Context, treeID string, since time.Time, contentTypes []folder.ContentType, params *folder.StorageParameters) ([]string, error) {
	var out []string
	err := s.read(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		for _, r := range all {
			if r.Folder.LastModified.After(since) && allowed(r.Folder.ContentType, contentTypes) {
				out = append(out, r.Folder.ID)
			}
		}
		return nil
	})
	slices.Sort(out)
	return out, err
}

// DeletedFolderIDs implements folder.Storage.
func (s *Store) DeletedFolderIDs(ctx context.Context, treeID string, since time.Time, params *folder.StorageParameters) ([]string, error) {
	var out []string
	err := s.read(ctx, params, func(tx Tx) error {
		start := time.Now()
		ids, err := tx.Tombstones(ctx, treeID, since)
		s.observe("tombstones", start, err)
		out = ids
		return err
	})
	slices.Sort(out)
	return out, err
}

// DefaultFolderID implements folder.Storage. A configured default folder
// wins; otherwise the first folder flagged as default for the content type
// and owned by the actor is returned.
func (s *Store) DefaultFolderID(ctx context.Context, treeID string, ct folder.ContentType, typ folder.Type, params *folder.StorageParameters) (string, error) {
	var id string
	err := s.read(ctx, params, func(tx Tx) error {
		if configured, ok := s.opts.DefaultFolders[ct]; ok {
			if _, err := s.get(ctx, tx, treeID, configured); err == nil {
				id = configured
				return nil
			} else if !folder.IsNotFound(err) {
				return err
			}
		}

		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		var candidates []folder.SortableID
		for _, r := range all {
			f := r.Folder
			if !f.Default || f.ContentType != ct || f.Type != typ {
				continue
			}
			if typ == folder.TypePrivate && f.CreatedBy != params.UserID() {
				continue
			}
			candidates = append(candidates, folder.SortableID{ID: f.ID, Name: f.Name})
		}
		if len(candidates) == 0 {
			return folder.NewError(folder.ErrNoDefaultFolder, treeID, "", "no default %s folder of type %s", ct, typ)
		}
		folder.SortIDs(candidates)
		id = candidates[0].ID
		return nil
	})
	return id, err
}

// SearchByName implements folder.Searchable. An empty rootID searches the
// whole tree.
func (s *Store) SearchByName(ctx context.Context, treeID, rootID, query string, date time.Time, includeSubfolders bool, params *folder.StorageParameters) ([]*folder.Folder, error) {
	var out []*folder.Folder
	needle := strings.ToLower(query)
	err := s.read(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}

		var candidates []*Record
		children := childIndex(all)
		switch {
		case rootID == "":
			candidates = all
		case includeSubfolders:
			candidates = descendants(rootID, children)
		default:
			candidates = children[rootID]
		}

		for _, r := range candidates {
			f := r.Folder
			if !strings.Contains(strings.ToLower(f.Name), needle) {
				continue
			}
			if !date.IsZero() && f.LastModified.Before(date) {
				continue
			}
			out = append(out, present(r, all))
		}
		return nil
	})
	return out, err
}

// UserSharedFolderIDs implements folder.UserSharedEnumerator: private folders
// of the actor granting access to another entity.
func (s *Store) UserSharedFolderIDs(ctx context.Context, treeID string, contentTypes []folder.ContentType, params *folder.StorageParameters) ([]folder.SortableID, error) {
	var out []folder.SortableID
	user := params.UserID()
	err := s.read(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		for _, r := range all {
			f := r.Folder
			if f.Type != folder.TypePrivate || f.CreatedBy != user || !allowed(f.ContentType, contentTypes) {
				continue
			}
			if sharedWithOthers(f, user) {
				out = append(out, folder.SortableID{ID: f.ID, Name: f.Name, Priority: s.opts.Priority})
			}
		}
		return nil
	})
	folder.SortIDs(out)
	return out, err
}

func sharedWithOthers(f *folder.Folder, user int) bool {
	for _, p := range f.Permissions {
		if p.IsSystem() {
			continue
		}
		if p.Group || p.Entity != user {
			return true
		}
	}
	return false
}

// VisibleFolderIDs implements folder.VisibleEnumerator. It returns the
// candidate folders of a content type and folder type; visibility itself is
// decided by the caller's permission calculator.
func (s *Store) VisibleFolderIDs(ctx context.Context, treeID string, ct folder.ContentType, typ folder.Type, params *folder.StorageParameters) ([]folder.SortableID, error) {
	var out []folder.SortableID
	user := params.UserID()
	err := s.read(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		for _, r := range all {
			f := r.Folder
			if f.ContentType != ct || !matchesType(f, typ, user) {
				continue
			}
			out = append(out, folder.SortableID{ID: f.ID, Name: f.Name, Priority: s.opts.Priority})
		}
		return nil
	})
	folder.SortIDs(out)
	return out, err
}

func matchesType(f *folder.Folder, typ folder.Type, user int) bool {
	switch typ {
	case folder.TypePrivate:
		return f.Type == folder.TypePrivate && !f.IsShared(user)
	case folder.TypeShared:
		return f.IsShared(user)
	default:
		return f.Type == typ
	}
}

// PrepareFolder implements folder.FolderPreparer: a private folder of another
// user is presented as shared, below the owner's container in the shared root.
func (s *Store) PrepareFolder(_ context.Context, _ string, f *folder.Folder, params *folder.StorageParameters) (*folder.Folder, error) {
	if f.Type != folder.TypePrivate || !f.IsShared(params.UserID()) {
		return f, nil
	}
	c := f.Clone()
	c.Type = folder.TypeShared
	c.ParentID = folder.SharedUserFolderID(f.CreatedBy)
	return c, nil
}
