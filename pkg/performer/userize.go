package performer

import (
	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// userize converts a storage folder into the actor's view of it.
//
// Parameters:
//   - s: Storage the folder was loaded from; shared folders are prepared
//     by the real storage of their parent
//   - f: Folder as returned by the storage
//   - perm: Actor's effective permission on f
//   - treeID: Tree the folder was requested in
//   - all: Whether unsubscribed subfolders count when narrowing
//   - nullMeansPublic: Present a folder without fixed subfolders as having
//     unresolved children instead of computing them
//
// Returns:
//   - *folder.UserizedFolder: The actor's view
//   - error: Failure of the storage preparing a shared folder
func (o *operation) userize(s folder.Storage, f *folder.Folder, perm folder.Permission, treeID string, all, nullMeansPublic bool) (*folder.UserizedFolder, error) {
	f = f.Clone()
	session := o.session()

	if f.IsShared(session.UserID) {
		if p, ok := o.preparer(s, treeID, f).(folder.FolderPreparer); ok {
			prepared, err := p.PrepareFolder(o.ctx, treeID, f, o.params)
			if err != nil {
				return nil, err
			}
			f = prepared
		}
		f.Type = folder.TypeShared
	}

	u := &folder.UserizedFolder{
		Locale:          session.Locale,
		OwnPermission:   perm,
		CreationDateUTC: f.CreationDate.UTC(),
		LastModifiedUTC: f.LastModified.UTC(),
	}
	if f.Type == folder.TypeSystem {
		u.LocalizedName = o.svc.localizer.FolderName(session.Locale, f.ID)
	}

	loc := session.Location()
	f.CreationDate = f.CreationDate.In(loc)
	f.LastModified = f.LastModified.In(loc)

	var ids []string
	switch {
	case f.SubfolderIDs != nil:
		ids = o.narrow(treeID, f.SubfolderIDs, all)
	case nullMeansPublic:
		f.SubfolderIDs = []string{folder.DummySubfolderID}
		u.Folder = *f
		u.Subfolders = folder.SubfoldersUnknownNonEmpty
		return u, nil
	default:
		children, err := o.collectSubfolders(treeID, f.ID)
		if err != nil {
			logger.Debug("Computing subfolders of %s/%s failed: %v", treeID, f.ID, err)
		}
		ids = o.narrow(treeID, folder.IDs(children), all)
	}

	f.SubfolderIDs = ids
	u.Folder = *f
	if len(ids) > 0 {
		u.Subfolders = folder.SubfoldersComputed
	}
	return u, nil
}

// preparer returns the storage presenting a shared folder: the storage of
// its parent in the real tree, or s when the parent cannot be resolved.
func (o *operation) preparer(s folder.Storage, treeID string, f *folder.Folder) folder.Storage {
	if f.ParentID == "" {
		return s
	}
	realTree := treeID
	if tree, err := o.tree(treeID); err == nil && tree.Virtual {
		realTree = tree.RealTreeID
	}
	ps, err := o.storageFor(realTree, f.ParentID)
	if err != nil {
		return s
	}
	return ps
}

// narrow keeps the subfolder ids whose folder resolves to a storage and is
// visible to the actor (and subscribed, unless all is set). The order of ids
// is preserved and the result is never nil.
func (o *operation) narrow(treeID string, ids []string, all bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		s, err := o.storageFor(treeID, id)
		if err != nil {
			continue
		}
		f, err := s.GetFolder(o.ctx, treeID, id, o.params)
		if err != nil {
			logger.Debug("Dropping subfolder %s/%s: %v", treeID, id, err)
			continue
		}
		perm, err := o.permission(f)
		if err != nil || !perm.Visible() {
			continue
		}
		if !all && !f.HasSubscription() {
			continue
		}
		out = append(out, id)
	}
	return out
}

// collectSubfolders merges the children of parentID reported by every
// storage serving it as parent. Failing storages contribute a warning; the
// call fails only when every storage failed.
func (o *operation) collectSubfolders(treeID, parentID string) ([]folder.SortableID, error) {
	storages := o.svc.registry.StoragesForParent(treeID, parentID)
	results := make([][]folder.SortableID, len(storages))
	failed := make([]bool, len(storages))
	mark := len(o.params.Warnings())

	err := o.fanOut(len(storages), func(i int, t *operation) error {
		s := storages[i]
		if err := t.open(s); err != nil {
			t.params.AddWarning(folder.WarningFromError(err, treeID, parentID))
			failed[i] = true
			return nil
		}
		ids, err := s.GetSubfolders(t.ctx, treeID, parentID, t.params)
		if err != nil {
			t.params.AddWarning(folder.WarningFromError(err, treeID, parentID))
			failed[i] = true
			return nil
		}
		results[i] = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(storages) > 0 && allTrue(failed) {
		return nil, o.escalate(mark)
	}

	seen := make(map[string]bool)
	var merged []folder.SortableID
	for _, ids := range results {
		for _, id := range ids {
			if seen[id.ID] {
				continue
			}
			seen[id.ID] = true
			merged = append(merged, id)
		}
	}
	folder.SortIDs(merged)
	return merged, nil
}

// subfolderIDs returns the fixed subfolder list of f, or the merged children
// reported by the storages when f has none.
func (o *operation) subfolderIDs(treeID string, f *folder.Folder) ([]string, error) {
	if f.SubfolderIDs != nil {
		return f.SubfolderIDs, nil
	}
	children, err := o.collectSubfolders(treeID, f.ID)
	if err != nil {
		return nil, err
	}
	return folder.IDs(children), nil
}

// fetch loads ids from s in one call, falling back to one call per id when
// the batch fails. Folders that cannot be loaded are left nil and reported
// through onError.
func (o *operation) fetch(s folder.Storage, treeID string, ids []string, onError func(id string, err error)) []*folder.Folder {
	folders, err := s.GetFolders(o.ctx, treeID, ids, o.params)
	if err == nil && len(folders) == len(ids) {
		return folders
	}

	out := make([]*folder.Folder, len(ids))
	for i, id := range ids {
		f, err := s.GetFolder(o.ctx, treeID, id, o.params)
		if err != nil {
			onError(id, err)
			continue
		}
		out[i] = f
	}
	return out
}

type partition struct {
	storage   folder.Storage
	ids       []string
	positions []int
}

// partitionIDs groups ids by the storage holding them, in order of first
// appearance. Ids without a storage are reported as warnings.
func (o *operation) partitionIDs(treeID string, ids []string) []*partition {
	var parts []*partition
	byStorage := make(map[folder.Storage]*partition)
	for pos, id := range ids {
		s, err := o.svc.registry.StorageFor(treeID, id)
		if err != nil {
			o.params.AddWarning(folder.WarningFromError(err, treeID, id))
			continue
		}
		p, ok := byStorage[s]
		if !ok {
			p = &partition{storage: s}
			byStorage[s] = p
			parts = append(parts, p)
		}
		p.ids = append(p.ids, id)
		p.positions = append(p.positions, pos)
	}
	return parts
}

// loadUserized loads ids (possibly spread over several storages, one task
// per storage), keeps the folders accepted by keep and returns them
// userized in the order of ids.
//
// Per-folder failures become warnings. If every storage task failed, the
// first warning is escalated into the returned error.
func (o *operation) loadUserized(treeID string, ids []string, all bool, keep func(f *folder.Folder, perm folder.Permission) bool) ([]*folder.UserizedFolder, error) {
	mark := len(o.params.Warnings())
	parts := o.partitionIDs(treeID, ids)
	out := make([]*folder.UserizedFolder, len(ids))
	failed := make([]bool, len(parts))

	err := o.fanOut(len(parts), func(i int, t *operation) error {
		p := parts[i]
		if err := t.open(p.storage); err != nil {
			t.params.AddWarning(folder.WarningFromError(err, treeID, ""))
			failed[i] = true
			return nil
		}

		folders := t.fetch(p.storage, treeID, p.ids, func(id string, err error) {
			t.params.AddWarning(folder.WarningFromError(err, treeID, id))
		})
		loaded := 0
		for j, f := range folders {
			if f == nil {
				continue
			}
			loaded++
			perm, err := t.permission(f)
			if err != nil {
				t.params.AddWarning(folder.WarningFromError(err, treeID, f.ID))
				continue
			}
			if !keep(f, perm) {
				continue
			}
			u, err := t.userize(p.storage, f, perm, treeID, all, publicSemantics(f))
			if err != nil {
				t.params.AddWarning(folder.WarningFromError(err, treeID, f.ID))
				continue
			}
			out[p.positions[j]] = u
		}
		if loaded == 0 {
			failed[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(parts) > 0 && allTrue(failed) {
		return nil, o.escalate(mark)
	}

	result := make([]*folder.UserizedFolder, 0, len(out))
	for _, u := range out {
		if u != nil {
			result = append(result, u)
		}
	}
	return result, nil
}

func allTrue(flags []bool) bool {
	for _, f := range flags {
		if !f {
			return false
		}
	}
	return true
}
