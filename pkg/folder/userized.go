package folder

import "time"

// SubfolderState tells how to interpret UserizedFolder.SubfolderIDs.
type SubfolderState int

const (
	// SubfoldersKnownEmpty means no subfolder is visible to the viewer.
	SubfoldersKnownEmpty SubfolderState = iota
	// SubfoldersComputed means SubfolderIDs is the resolved, narrowed list.
	SubfoldersComputed
	// SubfoldersUnknownNonEmpty means visible subfolders exist but were not
	// resolved. SubfolderIDs then holds DummySubfolderID only.
	SubfoldersUnknownNonEmpty
)

func (s SubfolderState) String() string {
	switch s {
	case SubfoldersComputed:
		return "computed"
	case SubfoldersUnknownNonEmpty:
		return "unknown-nonempty"
	default:
		return "empty"
	}
}

// UserizedFolder is a folder as seen by one actor. It is built per request
// and never persisted.
type UserizedFolder struct {
	Folder

	Locale        string
	LocalizedName string
	OwnPermission Permission

	// CreationDate and LastModified of the embedded Folder are expressed in
	// the viewer's time zone; the UTC originals are retained here.
	CreationDateUTC time.Time
	LastModifiedUTC time.Time

	Subfolders SubfolderState
}

// HasSubfolders reports whether the viewer has at least one visible subfolder.
func (u *UserizedFolder) HasSubfolders() bool {
	return u.Subfolders != SubfoldersKnownEmpty
}

// DisplayName returns the localized name when present.
func (u *UserizedFolder) DisplayName() string {
	if u.LocalizedName != "" {
		return u.LocalizedName
	}
	return u.Name
}
