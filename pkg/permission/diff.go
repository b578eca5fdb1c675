package permission

import "github.com/marmos91/dittofolders/pkg/folder"

// Changed reports whether the user-assigned (non-system) entries of two
// permission lists differ. Entries are compared by entity, so ordering does
// not matter.
func Changed(current, incoming []folder.Permission) bool {
	a := userAssigned(current)
	b := userAssigned(incoming)
	if len(a) != len(b) {
		return true
	}

	for _, p := range a {
		q, ok := find(b, p)
		if !ok || q != p {
			return true
		}
	}
	return false
}

// Diff returns the entries added to, removed from and modified between two
// permission lists, ignoring system entries.
func Diff(current, incoming []folder.Permission) (added, removed, modified []folder.Permission) {
	a := userAssigned(current)
	b := userAssigned(incoming)

	for _, p := range b {
		q, ok := find(a, p)
		switch {
		case !ok:
			added = append(added, p)
		case q != p:
			modified = append(modified, p)
		}
	}
	for _, p := range a {
		if _, ok := find(b, p); !ok {
			removed = append(removed, p)
		}
	}
	return added, removed, modified
}

// MergeSystem returns incoming with the system entries of current appended,
// so that a client update never drops implicit permissions.
func MergeSystem(current, incoming []folder.Permission) []folder.Permission {
	result := userAssigned(incoming)
	for _, p := range current {
		if p.IsSystem() {
			result = append(result, p)
		}
	}
	return result
}

func userAssigned(perms []folder.Permission) []folder.Permission {
	out := make([]folder.Permission, 0, len(perms))
	for _, p := range perms {
		if !p.IsSystem() {
			out = append(out, p)
		}
	}
	return out
}

func find(perms []folder.Permission, p folder.Permission) (folder.Permission, bool) {
	for _, q := range perms {
		if q.SameEntity(p) {
			return q, true
		}
	}
	return folder.Permission{}, false
}
