package registry

import (
	"github.com/marmos91/dittofolders/pkg/folder"
)

// StorageFor returns the storage responsible for folderID in treeID.
//
// Among the storages serving the tree, the one matching the id most
// specifically wins (exact id, then prefix, then catch-all); ties go to the
// storage registered first.
//
// Returns an ErrNoStorageForID error when no storage serves the folder.
func (r *Registry) StorageFor(treeID, folderID string) (folder.Storage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best folder.Storage
	bestMatch := folder.MatchNone
	for _, s := range r.order {
		scope := s.Scope()
		if !scope.ServesTree(treeID) {
			continue
		}
		if m := scope.MatchFolder(folderID); m > bestMatch {
			best, bestMatch = s, m
		}
	}

	if best == nil {
		return nil, folder.NoStorageForID(treeID, folderID)
	}
	return best, nil
}

// StoragesForParent returns every storage that may hold children of
// parentID in treeID, in registration order.
func (r *Registry) StoragesForParent(treeID, parentID string) []folder.Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []folder.Storage
	for _, s := range r.order {
		scope := s.Scope()
		if scope.ServesTree(treeID) && scope.ServesParent(parentID) {
			result = append(result, s)
		}
	}
	return result
}

// StorageForContentType returns the storage of treeID holding folders of ct.
// A storage listing ct explicitly is preferred over one supporting every
// content type.
//
// Returns an ErrNoStorageForID error when no storage supports ct.
func (r *Registry) StorageForContentType(treeID string, ct folder.ContentType) (folder.Storage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var fallback folder.Storage
	for _, s := range r.order {
		if !s.Scope().ServesTree(treeID) {
			continue
		}
		supported := s.SupportedContentTypes()
		if len(supported) == 0 {
			if fallback == nil {
				fallback = s
			}
			continue
		}
		for _, c := range supported {
			if c == ct {
				return s, nil
			}
		}
	}

	if fallback == nil {
		return nil, folder.NewError(folder.ErrNoStorageForID, treeID, "", "no storage for content type %q", ct)
	}
	return fallback, nil
}

// AllStorages returns every storage serving treeID, in registration order.
func (r *Registry) AllStorages(treeID string) []folder.Storage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []folder.Storage
	for _, s := range r.order {
		if s.Scope().ServesTree(treeID) {
			result = append(result, s)
		}
	}
	return result
}
