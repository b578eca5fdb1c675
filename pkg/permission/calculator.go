// Package permission computes the effective permission of an actor on a
// folder and compares permission lists.
package permission

//go:generate mockgen -source=calculator.go -destination=mocks/mock_calculator.go -package=mocks

import (
	"context"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// Calculator computes the effective permission of an actor on a folder.
type Calculator interface {
	// Calculate returns the merged permission of session on f.
	//
	// Parameters:
	//   - f: Folder as loaded from its storage
	//   - session: The actor
	//   - allowed: Content types the caller may see; empty allows all
	//
	// Returns:
	//   - folder.Permission: Effective permission (NoPermission when the
	//     actor has no entry)
	//   - error: Failure of an external permission service
	Calculate(ctx context.Context, f *folder.Folder, session *folder.Session, allowed []folder.ContentType) (folder.Permission, error)
}

// ACLCalculator derives permissions from the folder's own permission list.
//
// The entries matching the user, and every group the user belongs to, are
// merged. Group 0 matches everybody. The creator of a private folder always
// has full rights.
type ACLCalculator struct{}

// NewACLCalculator creates the default calculator.
func NewACLCalculator() *ACLCalculator {
	return &ACLCalculator{}
}

// Calculate implements Calculator.
func (c *ACLCalculator) Calculate(_ context.Context, f *folder.Folder, session *folder.Session, allowed []folder.ContentType) (folder.Permission, error) {
	if f == nil || session == nil {
		return folder.NoPermission(), nil
	}

	if !contentTypeAllowed(f, allowed) {
		none := folder.NoPermission()
		none.Entity = session.UserID
		return none, nil
	}

	effective := folder.NoPermission()
	effective.Entity = session.UserID

	for _, p := range f.Permissions {
		if p.Group {
			if !session.InGroup(p.Entity) {
				continue
			}
		} else if p.Entity != session.UserID {
			continue
		}
		effective = effective.Merge(p)
	}

	if f.Type == folder.TypePrivate && f.CreatedBy == session.UserID {
		effective = effective.Merge(folder.OwnerPermission(session.UserID))
	}

	effective.Entity = session.UserID
	effective.Group = false
	effective.System = 0
	return effective, nil
}

// System folders are containers and stay visible whatever the restriction.
func contentTypeAllowed(f *folder.Folder, allowed []folder.ContentType) bool {
	if len(allowed) == 0 || f.Type == folder.TypeSystem {
		return true
	}
	for _, ct := range allowed {
		if ct == f.ContentType {
			return true
		}
	}
	return false
}
