package folder

import "strings"

// Match ranks how specifically a storage serves a folder id.
type Match int

const (
	MatchNone Match = iota
	MatchCatchAll
	MatchPrefix
	MatchExact
)

// Scope declares which trees, folder ids and parent ids a storage serves.
type Scope struct {
	// TreeIDs lists the trees served by the storage.
	TreeIDs []string `mapstructure:"trees" yaml:"trees"`

	// FolderIDs are served with exact precedence.
	FolderIDs []string `mapstructure:"folder_ids" yaml:"folder_ids,omitempty"`

	// FolderPrefixes are served with prefix precedence.
	FolderPrefixes []string `mapstructure:"folder_prefixes" yaml:"folder_prefixes,omitempty"`

	// ExcludePrefixes are never served, neither as folder nor as parent.
	ExcludePrefixes []string `mapstructure:"exclude_prefixes" yaml:"exclude_prefixes,omitempty"`

	// ParentIDs and ParentPrefixes select the parents whose children the
	// storage contributes to. Folder ids served by the storage are parents too.
	ParentIDs      []string `mapstructure:"parent_ids" yaml:"parent_ids,omitempty"`
	ParentPrefixes []string `mapstructure:"parent_prefixes" yaml:"parent_prefixes,omitempty"`

	// CatchAll serves every id not excluded, with the lowest precedence.
	CatchAll bool `mapstructure:"catch_all" yaml:"catch_all,omitempty"`
}

// ServesTree reports whether the storage serves treeID.
func (s Scope) ServesTree(treeID string) bool {
	for _, t := range s.TreeIDs {
		if t == treeID {
			return true
		}
	}
	return false
}

// MatchFolder ranks how specifically folderID is served.
func (s Scope) MatchFolder(folderID string) Match {
	for _, id := range s.FolderIDs {
		if id == folderID {
			return MatchExact
		}
	}
	if s.excluded(folderID) {
		return MatchNone
	}
	if hasAnyPrefix(folderID, s.FolderPrefixes) {
		return MatchPrefix
	}
	if s.CatchAll {
		return MatchCatchAll
	}
	return MatchNone
}

// ServesParent reports whether the storage may hold children of parentID.
func (s Scope) ServesParent(parentID string) bool {
	for _, id := range s.ParentIDs {
		if id == parentID {
			return true
		}
	}
	if s.excluded(parentID) {
		return false
	}
	if hasAnyPrefix(parentID, s.ParentPrefixes) {
		return true
	}
	return s.MatchFolder(parentID) != MatchNone
}

func (s Scope) excluded(id string) bool {
	return hasAnyPrefix(id, s.ExcludePrefixes)
}

func hasAnyPrefix(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
