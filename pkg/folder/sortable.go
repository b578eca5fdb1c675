package folder

import (
	"sort"
	"strings"
)

// SortableID is a folder id together with the keys used to merge subfolder
// listings collected from several storages into one deterministic order.
type SortableID struct {
	ID       string
	Name     string
	Priority int
}

// Less orders by priority, then case-insensitive name, then id.
func (s SortableID) Less(o SortableID) bool {
	if s.Priority != o.Priority {
		return s.Priority < o.Priority
	}
	a, b := strings.ToLower(s.Name), strings.ToLower(o.Name)
	if a != b {
		return a < b
	}
	return s.ID < o.ID
}

// SortIDs sorts ids in place.
func SortIDs(ids []SortableID) {
	sort.SliceStable(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// IDs extracts the plain identifiers.
func IDs(ids []SortableID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.ID
	}
	return out
}
