package performer

import (
	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/i18n"
)

// maxAutoRename bounds the suffixes tried when disambiguating a name.
const maxAutoRename = 1000

var nameValidator = validator.New()

type folderName struct {
	Name string `validate:"required,max=255,excludesall=/\\"`
}

// validateName checks a folder name before it is written below parentID.
func (o *operation) validateName(treeID, parentID, name string) error {
	if err := nameValidator.Struct(folderName{Name: name}); err != nil {
		return folder.NewError(folder.ErrInvalidName, treeID, parentID, "invalid folder name %q", name)
	}
	if folder.IsSystemFolderID(parentID) && o.svc.reserved(o.locale(), name) {
		return folder.NewError(folder.ErrReservedName, treeID, parentID, "folder name %q is reserved", name)
	}
	return nil
}

// reserved reports whether name collides with a system folder name or a
// configured reserved name.
func (s *Service) reserved(locale, name string) bool {
	for _, r := range s.opts.ReservedNames {
		if i18n.EqualNames(locale, r, name) {
			return true
		}
	}
	for _, id := range []string{folder.RootID, folder.PrivateID, folder.PublicID, folder.SharedID, folder.InfostoreID} {
		if n := s.localizer.FolderName(locale, id); n != "" && i18n.EqualNames(locale, n, name) {
			return true
		}
	}
	return false
}

// siblingNames lists the names of the children of parent, except exclude.
func (o *operation) siblingNames(treeID string, parent *folder.Folder, exclude string) ([]string, error) {
	if parent.SubfolderIDs == nil {
		children, err := o.collectSubfolders(treeID, parent.ID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(children))
		for _, c := range children {
			if c.ID != exclude {
				names = append(names, c.Name)
			}
		}
		return names, nil
	}

	var names []string
	for _, p := range o.partitionIDs(treeID, parent.SubfolderIDs) {
		if err := o.open(p.storage); err != nil {
			return nil, err
		}
		folders := o.fetch(p.storage, treeID, p.ids, func(string, error) {})
		for _, f := range folders {
			if f != nil && f.ID != exclude {
				names = append(names, f.Name)
			}
		}
	}
	return names, nil
}

// resolveName returns name if no sibling below parent carries an equal
// name. Otherwise it returns the first free disambiguated variant when
// autoRename is set, or fails with ErrEqualName.
func (o *operation) resolveName(treeID string, parent *folder.Folder, name string, ct folder.ContentType, exclude string, autoRename bool) (string, error) {
	taken, err := o.siblingNames(treeID, parent, exclude)
	if err != nil {
		return "", err
	}

	locale := o.locale()
	if !nameTaken(locale, taken, name) {
		return name, nil
	}
	if !autoRename {
		return "", folder.NewError(folder.ErrEqualName, treeID, parent.ID, "a folder named %q already exists", name)
	}

	style := ct.RenameStyle()
	for n := 2; n < maxAutoRename; n++ {
		candidate := style.Apply(name, n)
		if !nameTaken(locale, taken, candidate) {
			return candidate, nil
		}
	}
	return "", folder.NewError(folder.ErrEqualName, treeID, parent.ID, "no free name for %q", name)
}

func nameTaken(locale string, taken []string, name string) bool {
	for _, t := range taken {
		if i18n.EqualNames(locale, t, name) {
			return true
		}
	}
	return false
}
