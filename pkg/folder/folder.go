package folder

import "time"

// Folder is the backend-level folder entity. A Folder is owned by its
// Storage and is only mutated through Storage operations.
type Folder struct {
	ID          string      `json:"id"`
	TreeID      string      `json:"tree_id"`
	ParentID    string      `json:"parent_id"`
	Name        string      `json:"name"`
	ContentType ContentType `json:"content_type"`
	Type        Type        `json:"type"`

	CreatedBy    int       `json:"created_by"`
	ModifiedBy   int       `json:"modified_by"`
	CreationDate time.Time `json:"creation_date"`
	LastModified time.Time `json:"last_modified"`

	// SubfolderIDs is nil when subfolders have to be computed dynamically
	// from the storages serving this folder as parent. A non-nil slice is a
	// fixed, precomputed list (possibly empty).
	SubfolderIDs []string `json:"subfolder_ids"`

	Subscribed           bool `json:"subscribed"`
	SubscribedSubfolders bool `json:"subscribed_subfolders"`

	Permissions []Permission `json:"permissions"`

	// Default marks the default folder of its content type.
	Default bool `json:"default"`
}

// Clone returns a deep copy of f.
func (f *Folder) Clone() *Folder {
	if f == nil {
		return nil
	}

	c := *f
	if f.SubfolderIDs != nil {
		c.SubfolderIDs = append(make([]string, 0, len(f.SubfolderIDs)), f.SubfolderIDs...)
	}
	if f.Permissions != nil {
		c.Permissions = append(make([]Permission, 0, len(f.Permissions)), f.Permissions...)
	}
	return &c
}

// IsShared reports whether f must be presented as shared to the given user:
// either it is a shared folder, or a private folder created by somebody else.
func (f *Folder) IsShared(userID int) bool {
	if f.Type == TypeShared {
		return true
	}
	return f.Type == TypePrivate && f.CreatedBy != 0 && f.CreatedBy != userID
}

// HasSubscription reports whether f is subscribed or has subscribed descendants.
func (f *Folder) HasSubscription() bool {
	return f.Subscribed || f.SubscribedSubfolders
}

// SystemFolders returns the well-known system folders of a tree.
func SystemFolders(treeID string, now time.Time) []*Folder {
	mk := func(id, parent, name string, ct ContentType, subfolders []string) *Folder {
		return &Folder{
			ID:           id,
			TreeID:       treeID,
			ParentID:     parent,
			Name:         name,
			ContentType:  ct,
			Type:         TypeSystem,
			CreationDate: now,
			LastModified: now,
			SubfolderIDs: subfolders,
			Subscribed:   true,
			Permissions:  []Permission{SystemReadPermission()},
		}
	}

	return []*Folder{
		mk(RootID, "", "Root", ContentSystem, []string{PrivateID, PublicID, SharedID, InfostoreID}),
		mk(PrivateID, RootID, "Private folders", ContentSystem, nil),
		mk(PublicID, RootID, "Public folders", ContentSystem, nil),
		mk(SharedID, RootID, "Shared folders", ContentSystem, nil),
		mk(InfostoreID, RootID, "Infostore", ContentInfostore, nil),
	}
}
