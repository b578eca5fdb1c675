// Package folder defines the folder model shared by every storage and by the
// performers that orchestrate them: folders, permissions, trees, storage
// parameters, the Storage capability interface and the folder error taxonomy.
package folder

import (
	"fmt"
	"strings"
)

// ContentType identifies the kind of objects a folder holds.
type ContentType string

const (
	ContentMail      ContentType = "mail"
	ContentCalendar  ContentType = "calendar"
	ContentContacts  ContentType = "contacts"
	ContentTasks     ContentType = "tasks"
	ContentInfostore ContentType = "infostore"
	ContentSystem    ContentType = "system"
	ContentUnbound   ContentType = "unbound"
)

// ContentTypes lists every known content type.
var ContentTypes = []ContentType{
	ContentMail,
	ContentCalendar,
	ContentContacts,
	ContentTasks,
	ContentInfostore,
	ContentSystem,
	ContentUnbound,
}

// ParseContentType converts a string into a ContentType.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.Valid() {
		return "", fmt.Errorf("unknown content type %q", s)
	}
	return ct, nil
}

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	for _, known := range ContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// RenameStyle returns how duplicate names are disambiguated for this content type.
func (c ContentType) RenameStyle() RenameStyle {
	switch c {
	case ContentInfostore:
		return RenameUnderscore
	case ContentMail:
		return RenameSpaced
	default:
		return RenameParenthesized
	}
}

// RenameStyle controls the suffix appended to a conflicting folder name.
type RenameStyle int

const (
	// RenameParenthesized produces "Name (2)".
	RenameParenthesized RenameStyle = iota
	// RenameUnderscore produces "Name_2".
	RenameUnderscore
	// RenameSpaced produces "Name 2".
	RenameSpaced
)

// Apply returns name decorated with the n-th disambiguation suffix.
func (s RenameStyle) Apply(name string, n int) string {
	switch s {
	case RenameUnderscore:
		return fmt.Sprintf("%s_%d", name, n)
	case RenameSpaced:
		return fmt.Sprintf("%s %d", name, n)
	default:
		return fmt.Sprintf("%s (%d)", name, n)
	}
}

// Type is the folder type from the owner's point of view.
type Type string

const (
	TypePrivate Type = "private"
	TypePublic  Type = "public"
	TypeShared  Type = "shared"
	TypeSystem  Type = "system"
	TypeTrash   Type = "trash"
)

// Valid reports whether t is a known folder type.
func (t Type) Valid() bool {
	switch t {
	case TypePrivate, TypePublic, TypeShared, TypeSystem, TypeTrash:
		return true
	}
	return false
}

// Well-known tree identifiers.
const (
	RealTreeID    = "0"
	VirtualTreeID = "1"
)

// Well-known system folder identifiers. They are the same in every tree.
const (
	RootID      = "0"
	PrivateID   = "1"
	PublicID    = "2"
	SharedID    = "3"
	InfostoreID = "9"
)

// SharedUserPrefix prefixes the virtual per-user container under the shared
// root ("u:42" holds folders shared by user 42).
const SharedUserPrefix = "u:"

// DummySubfolderID is the sentinel placed into a subfolder list whose
// contents are known to be non-empty but were not resolved.
const DummySubfolderID = "*"

// IsSystemFolderID reports whether id is one of the well-known system folders.
func IsSystemFolderID(id string) bool {
	switch id {
	case RootID, PrivateID, PublicID, SharedID, InfostoreID:
		return true
	}
	return false
}

// SharedUserFolderID returns the id of the shared container of a user.
func SharedUserFolderID(userID int) string {
	return fmt.Sprintf("%s%d", SharedUserPrefix, userID)
}

// Tree describes a folder namespace. Virtual trees reference folders of
// their real tree by id.
type Tree struct {
	ID         string
	Name       string
	Virtual    bool
	RealTreeID string
}
