package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittofolders/internal/logger"
	"github.com/marmos91/dittofolders/pkg/folder"
)

// GetFolder implements folder.Storage.
func (s *Store) GetFolder(ctx context.Context, treeID, folderID string, params *folder.StorageParameters) (*folder.Folder, error) {
	var out *folder.Folder
	err := s.read(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		var all []*Record
		if needsChildren(rec) {
			if all, err = s.scan(ctx, tx, treeID); err != nil {
				return err
			}
		}
		out = present(rec, all)
		return nil
	})
	return out, err
}

// GetFolders implements folder.Storage. It fails as a whole if one folder
// is missing.
func (s *Store) GetFolders(ctx context.Context, treeID string, ids []string, params *folder.StorageParameters) ([]*folder.Folder, error) {
	out := make([]*folder.Folder, len(ids))
	err := s.read(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}
		byID := make(map[string]*Record, len(all))
		for _, r := range all {
			byID[r.Folder.ID] = r
		}
		for i, id := range ids {
			rec, ok := byID[id]
			if !ok {
				return folder.NotFound(treeID, id)
			}
			out[i] = present(rec, all)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateFolder implements folder.Storage.
func (s *Store) CreateFolder(ctx context.Context, f *folder.Folder, params *folder.StorageParameters) error {
	if f.ID == "" {
		id, err := s.opts.NewID()
		if err != nil {
			return fmt.Errorf("storage %q: generate id: %w", s.opts.Name, err)
		}
		f.ID = id
	}
	if f.ContentType == "" {
		f.ContentType = s.opts.DefaultContentType
	}
	ts := now(params)
	if f.CreationDate.IsZero() {
		f.CreationDate = ts
	}
	f.LastModified = ts
	if f.CreatedBy == 0 {
		f.CreatedBy = params.UserID()
	}
	f.ModifiedBy = params.UserID()

	return s.write(ctx, params, func(tx Tx) error {
		if _, err := s.get(ctx, tx, f.TreeID, f.ID); err == nil {
			return fmt.Errorf("storage %q: folder %s already exists in tree %s", s.opts.Name, f.ID, f.TreeID)
		} else if !folder.IsNotFound(err) {
			return err
		}

		rec := &Record{Folder: f.Clone(), FixedSubfolders: f.SubfolderIDs != nil}
		if err := s.put(ctx, tx, f.TreeID, rec); err != nil {
			return err
		}
		logger.Debug("Storage %s: created folder %s/%s %q", s.opts.Name, f.TreeID, f.ID, f.Name)
		return nil
	})
}

// UpdateFolder implements folder.Storage. Parent, name, permissions,
// subscription and default flag are taken from f. SubscribedSubfolders is
// derived from the tree and never taken from f.
func (s *Store) UpdateFolder(ctx context.Context, f *folder.Folder, params *folder.StorageParameters) error {
	return s.write(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, f.TreeID, f.ID)
		if err != nil {
			return err
		}

		updated := rec.Folder.Clone()
		updated.ParentID = f.ParentID
		updated.Name = f.Name
		updated.Subscribed = f.Subscribed
		updated.Default = f.Default
		if f.Permissions != nil {
			updated.Permissions = append([]folder.Permission(nil), f.Permissions...)
		}
		if f.Type != "" {
			updated.Type = f.Type
		}
		updated.LastModified = now(params)
		updated.ModifiedBy = params.UserID()

		rec.Folder = updated
		return s.put(ctx, tx, f.TreeID, rec)
	})
}

// DeleteFolder implements folder.Storage.
func (s *Store) DeleteFolder(ctx context.Context, treeID, folderID string, params *folder.StorageParameters) error {
	return s.write(ctx, params, func(tx Tx) error {
		if _, err := s.get(ctx, tx, treeID, folderID); err != nil {
			return err
		}
		start := time.Now()
		err := tx.Delete(ctx, treeID, folderID, now(params))
		s.observe("delete", start, err)
		if err != nil {
			return err
		}
		logger.Debug("Storage %s: deleted folder %s/%s", s.opts.Name, treeID, folderID)
		return nil
	})
}

// ClearFolder implements folder.Storage.
func (s *Store) ClearFolder(ctx context.Context, treeID, folderID string, params *folder.StorageParameters) error {
	return s.write(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		rec.Objects = nil
		rec.Folder.LastModified = now(params)
		return s.put(ctx, tx, treeID, rec)
	})
}

// UpdateLastModified implements folder.Storage.
func (s *Store) UpdateLastModified(ctx context.Context, lastModified time.Time, treeID, folderID string, params *folder.StorageParameters) error {
	return s.write(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		rec.Folder.LastModified = lastModified
		return s.put(ctx, tx, treeID, rec)
	})
}

// ContainsFolder implements folder.Storage.
func (s *Store) ContainsFolder(ctx context.Context, treeID, folderID string, kind folder.StorageKind, params *folder.StorageParameters) (bool, error) {
	var found bool
	err := s.read(ctx, params, func(tx Tx) error {
		if kind == folder.KindBackup {
			ok, err := tx.HasTombstone(ctx, treeID, folderID)
			found = ok
			return err
		}
		_, err := s.get(ctx, tx, treeID, folderID)
		switch {
		case err == nil:
			found = true
		case folder.IsNotFound(err):
		default:
			return err
		}
		return nil
	})
	return found, err
}

// IsEmpty implements folder.Storage.
func (s *Store) IsEmpty(ctx context.Context, treeID, folderID string, params *folder.StorageParameters) (bool, error) {
	var empty bool
	err := s.read(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		empty = len(rec.Objects) == 0
		return nil
	})
	return empty, err
}

// ContainsForeignObjects implements folder.Storage.
func (s *Store) ContainsForeignObjects(ctx context.Context, treeID, folderID string, params *folder.StorageParameters) (bool, error) {
	var foreign bool
	err := s.read(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		for _, creator := range rec.Objects {
			if creator != params.UserID() {
				foreign = true
				break
			}
		}
		return nil
	})
	return foreign, err
}

// CheckConsistency implements folder.Storage. Folders whose parent this
// storage should hold but does not are moved below the private or public
// root, and the subscribed-descendant flags are recomputed.
func (s *Store) CheckConsistency(ctx context.Context, treeID string, params *folder.StorageParameters) error {
	return s.write(ctx, params, func(tx Tx) error {
		all, err := s.scan(ctx, tx, treeID)
		if err != nil {
			return err
		}

		byID := make(map[string]*Record, len(all))
		for _, r := range all {
			byID[r.Folder.ID] = r
		}

		changed := make(map[string]*Record)
		for _, r := range all {
			parent := r.Folder.ParentID
			if parent == "" || folder.IsSystemFolderID(parent) || byID[parent] != nil {
				continue
			}
			if s.opts.Scope.MatchFolder(parent) == folder.MatchNone {
				continue
			}
			orphanParent := folder.PrivateID
			if r.Folder.Type == folder.TypePublic {
				orphanParent = folder.PublicID
			}
			logger.Warn("Storage %s: folder %s/%s references missing parent %s, moving below %s",
				s.opts.Name, treeID, r.Folder.ID, parent, orphanParent)
			r.Folder.ParentID = orphanParent
			changed[r.Folder.ID] = r
		}

		children := childIndex(all)
		for _, r := range all {
			want := hasSubscribedDescendant(r.Folder.ID, children, map[string]bool{})
			if r.Folder.SubscribedSubfolders != want {
				r.Folder.SubscribedSubfolders = want
				changed[r.Folder.ID] = r
			}
		}

		for _, r := range changed {
			if err := s.put(ctx, tx, treeID, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// Seed inserts folders as they are, bypassing id generation and stamps.
// Intended for bootstrapping system folders and for tests.
func (s *Store) Seed(ctx context.Context, folders ...*folder.Folder) error {
	params := folder.NewStorageParameters(nil)
	return s.write(ctx, params, func(tx Tx) error {
		for _, f := range folders {
			if f.ID == "" {
				return fmt.Errorf("storage %q: seeded folder %q has no id", s.opts.Name, f.Name)
			}
			rec := &Record{Folder: f.Clone(), FixedSubfolders: f.SubfolderIDs != nil}
			if err := s.put(ctx, tx, f.TreeID, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddObject records an object created by createdBy in a folder.
func (s *Store) AddObject(ctx context.Context, treeID, folderID string, createdBy int) error {
	params := folder.NewStorageParameters(nil)
	return s.write(ctx, params, func(tx Tx) error {
		rec, err := s.get(ctx, tx, treeID, folderID)
		if err != nil {
			return err
		}
		rec.Objects = append(rec.Objects, createdBy)
		return s.put(ctx, tx, treeID, rec)
	})
}

func (s *Store) get(ctx context.Context, tx Tx, treeID, folderID string) (*Record, error) {
	start := time.Now()
	rec, err := tx.Get(ctx, treeID, folderID)
	s.observe("get", start, err)
	if errors.Is(err, ErrNoRecord) {
		return nil, folder.NotFound(treeID, folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("storage %q: get %s/%s: %w", s.opts.Name, treeID, folderID, err)
	}
	return rec, nil
}

func (s *Store) put(ctx context.Context, tx Tx, treeID string, rec *Record) error {
	if !rec.FixedSubfolders {
		rec.Folder.SubfolderIDs = nil
	}
	start := time.Now()
	err := tx.Put(ctx, treeID, rec)
	s.observe("put", start, err)
	if err != nil {
		return fmt.Errorf("storage %q: put %s/%s: %w", s.opts.Name, treeID, rec.Folder.ID, err)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, tx Tx, treeID string) ([]*Record, error) {
	start := time.Now()
	all, err := tx.Scan(ctx, treeID)
	s.observe("scan", start, err)
	if err != nil {
		return nil, fmt.Errorf("storage %q: scan tree %s: %w", s.opts.Name, treeID, err)
	}
	return all, nil
}
