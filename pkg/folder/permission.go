package folder

// FolderRight is the folder-level permission ordinal.
type FolderRight int

const (
	FolderNone FolderRight = iota
	FolderVisible
	FolderCreateObjects
	FolderCreateSubfolders
	FolderMax
)

// ObjectRight is the read/write/delete permission ordinal on folder contents.
type ObjectRight int

const (
	ObjectNone ObjectRight = iota
	ObjectOwn
	ObjectAll
)

// Permission is a single permission entry of a folder, or the effective
// permission of an actor on a folder.
type Permission struct {
	Entity int  `json:"entity"`
	Group  bool `json:"group"`

	// System is 0 for user-assigned entries. Non-zero entries are implicit
	// and are not subject to user editing.
	System int `json:"system"`

	Folder FolderRight `json:"folder"`
	Read   ObjectRight `json:"read"`
	Write  ObjectRight `json:"write"`
	Delete ObjectRight `json:"delete"`
	Admin  bool        `json:"admin"`
}

// Visible reports whether the folder is visible with this permission.
func (p Permission) Visible() bool {
	return p.Admin || p.Folder >= FolderVisible
}

// CanCreateSubfolders reports whether subfolders may be created.
func (p Permission) CanCreateSubfolders() bool {
	return p.Folder >= FolderCreateSubfolders
}

// IsSystem reports whether this is an implicit permission entry.
func (p Permission) IsSystem() bool {
	return p.System != 0
}

// SameEntity reports whether p and o address the same user or group.
func (p Permission) SameEntity(o Permission) bool {
	return p.Entity == o.Entity && p.Group == o.Group
}

// Merge returns the union of two permissions for the same actor.
func (p Permission) Merge(o Permission) Permission {
	r := p
	r.Folder = max(p.Folder, o.Folder)
	r.Read = max(p.Read, o.Read)
	r.Write = max(p.Write, o.Write)
	r.Delete = max(p.Delete, o.Delete)
	r.Admin = p.Admin || o.Admin
	return r
}

// NoPermission is the permission of an actor without any right.
func NoPermission() Permission {
	return Permission{}
}

// OwnerPermission is the full permission granted to the creator of a folder.
func OwnerPermission(userID int) Permission {
	return Permission{
		Entity: userID,
		Folder: FolderMax,
		Read:   ObjectAll,
		Write:  ObjectAll,
		Delete: ObjectAll,
		Admin:  true,
	}
}

// SystemReadPermission is the implicit entry of system folders: visible and
// able to hold subfolders for everybody, no rights on contents.
func SystemReadPermission() Permission {
	return Permission{
		Entity: 0,
		Group:  true,
		System: 1,
		Folder: FolderCreateSubfolders,
	}
}
