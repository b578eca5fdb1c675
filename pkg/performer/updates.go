package performer

import (
	"context"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// UpdatesRequest selects the folder changes to report.
type UpdatesRequest struct {
	TreeID string
	Since  time.Time

	// ContentTypes restricts modified folders. Empty reports every type.
	ContentTypes []folder.ContentType

	// IgnoreDeleted skips the enumeration of hard-deleted folders.
	IgnoreDeleted bool
}

// UpdatesResult lists the folders changed since a point in time.
// Deleted entries only carry TreeID and ID.
type UpdatesResult struct {
	Modified []*folder.UserizedFolder
	Deleted  []*folder.UserizedFolder
	Warnings []folder.Warning
}

// UpdatesSince reports the folders modified and deleted after req.Since
// from the actor's point of view.
//
// A modified folder the actor can no longer see because it is a shared
// folder and the actor lacks full shared-folder access is reported as
// deleted. A visible folder below an invisible parent is not reported
// itself; the system folder it hangs below is reported instead so that the
// client refreshes that container.
func (s *Service) UpdatesSince(ctx context.Context, session *folder.Session, req UpdatesRequest) (*UpdatesResult, error) {
	res := &UpdatesResult{}
	warnings, err := s.run(ctx, "updates", session, false, func(o *operation) error {
		return o.updatesSince(req, res)
	})
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}

type changeKind int

const (
	changeNone changeKind = iota
	changeModified
	changeDeleted
	changeAncestor
)

type change struct {
	kind     changeKind
	folder   *folder.UserizedFolder
	ancestor string
}

func (o *operation) updatesSince(req UpdatesRequest, res *UpdatesResult) error {
	tree, err := o.tree(req.TreeID)
	if err != nil {
		return err
	}

	sources := o.svc.registry.AllStorages(tree.ID)
	if tree.Virtual {
		for _, s := range o.svc.registry.AllStorages(tree.RealTreeID) {
			if !containsStorage(sources, s) {
				sources = append(sources, s)
			}
		}
	}

	modified := make([][]string, len(sources))
	deleted := make([][]string, len(sources))
	err = o.fanOut(len(sources), func(i int, t *operation) error {
		s := sources[i]
		if err := t.open(s); err != nil {
			t.params.AddWarning(folder.WarningFromError(err, tree.ID, ""))
			return nil
		}
		sourceTree := tree.ID
		if !s.Scope().ServesTree(sourceTree) {
			sourceTree = tree.RealTreeID
		}
		ids, err := s.ModifiedFolderIDs(t.ctx, sourceTree, req.Since, req.ContentTypes, t.params)
		if err != nil {
			t.params.AddWarning(folder.WarningFromError(err, tree.ID, ""))
			return nil
		}
		modified[i] = ids
		if req.IgnoreDeleted {
			return nil
		}
		gone, err := s.DeletedFolderIDs(t.ctx, sourceTree, req.Since, t.params)
		if err != nil {
			t.params.AddWarning(folder.WarningFromError(err, tree.ID, ""))
			return nil
		}
		deleted[i] = gone
		return nil
	})
	if err != nil {
		return err
	}

	ids := dedupe(modified)
	changes, err := o.classify(tree, ids)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var ancestors []string
	for _, c := range changes {
		switch c.kind {
		case changeModified:
			if !seen[c.folder.ID] {
				seen[c.folder.ID] = true
				res.Modified = append(res.Modified, c.folder)
			}
		case changeAncestor:
			ancestors = append(ancestors, c.ancestor)
		}
	}
	for _, id := range ancestors {
		if seen[id] {
			continue
		}
		u, err := o.get(tree.ID, id)
		if err != nil {
			o.params.AddWarning(folder.WarningFromError(err, tree.ID, id))
			continue
		}
		seen[id] = true
		res.Modified = append(res.Modified, u)
	}

	addDeleted := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		res.Deleted = append(res.Deleted, &folder.UserizedFolder{Folder: folder.Folder{ID: id, TreeID: tree.ID}})
	}
	for _, c := range changes {
		if c.kind == changeDeleted {
			addDeleted(c.folder.ID)
		}
	}
	if req.IgnoreDeleted {
		return nil
	}
	for _, id := range dedupe(deleted) {
		if tree.Virtual && !o.virtualContained(tree.ID, id) {
			continue
		}
		addDeleted(id)
	}
	return nil
}

// classify loads the modified folders (one task per storage) and decides
// how each is reported. The result has the order of ids.
func (o *operation) classify(tree folder.Tree, ids []string) ([]change, error) {
	changes := make([]change, len(ids))
	parts := o.partitionIDs(tree.ID, ids)

	err := o.fanOut(len(parts), func(i int, t *operation) error {
		p := parts[i]
		if err := t.open(p.storage); err != nil {
			t.params.AddWarning(folder.WarningFromError(err, tree.ID, ""))
			return nil
		}
		folders := t.fetch(p.storage, tree.ID, p.ids, func(id string, err error) {
			if !folder.IsNotFound(err) {
				t.params.AddWarning(folder.WarningFromError(err, tree.ID, id))
			}
		})
		for j, f := range folders {
			if f != nil {
				changes[p.positions[j]] = t.classifyOne(tree, p.storage, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (o *operation) classifyOne(tree folder.Tree, s folder.Storage, f *folder.Folder) change {
	session := o.session()
	perm, err := o.permission(f)
	if err != nil {
		o.params.AddWarning(folder.WarningFromError(err, tree.ID, f.ID))
		return change{}
	}

	shared := f.IsShared(session.UserID)
	if !perm.Visible() || (shared && !session.FullSharedFolderAccess) {
		if shared {
			return change{kind: changeDeleted, folder: &folder.UserizedFolder{Folder: folder.Folder{ID: f.ID, TreeID: tree.ID}}}
		}
		return change{}
	}

	if f.ParentID != "" && !o.parentVisible(tree.ID, f.ParentID) {
		return change{kind: changeAncestor, ancestor: systemAncestor(f, shared)}
	}

	u, err := o.userize(s, f, perm, tree.ID, false, publicSemantics(f))
	if err != nil {
		o.params.AddWarning(folder.WarningFromError(err, tree.ID, f.ID))
		return change{}
	}
	return change{kind: changeModified, folder: u}
}

func (o *operation) parentVisible(treeID, parentID string) bool {
	_, parent, err := o.load(treeID, parentID)
	if err != nil {
		return false
	}
	perm, err := o.permission(parent)
	return err == nil && perm.Visible()
}

// systemAncestor returns the system folder a folder below an invisible
// parent is presented under.
func systemAncestor(f *folder.Folder, shared bool) string {
	switch {
	case shared:
		return folder.SharedID
	case f.ContentType == folder.ContentInfostore:
		return folder.InfostoreID
	case f.Type == folder.TypePublic:
		return folder.PublicID
	default:
		return folder.PrivateID
	}
}

// virtualContained reports whether a virtual tree holds or held id.
func (o *operation) virtualContained(treeID, id string) bool {
	s, err := o.storageFor(treeID, id)
	if err != nil {
		return false
	}
	for _, kind := range []folder.StorageKind{folder.KindBackup, folder.KindWorking} {
		if ok, err := s.ContainsFolder(o.ctx, treeID, id, kind, o.params); err == nil && ok {
			return true
		}
	}
	return false
}

func containsStorage(list []folder.Storage, s folder.Storage) bool {
	for _, c := range list {
		if c == s {
			return true
		}
	}
	return false
}

func dedupe(groups [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ids := range groups {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
