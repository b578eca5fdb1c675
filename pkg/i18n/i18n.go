// Package i18n localizes system folder names and compares folder names the
// way users perceive them (case-insensitive, locale-aware).
package i18n

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// Localizer translates the names of well-known folders.
type Localizer interface {
	// FolderName returns the localized name of a system folder, or "" when
	// folderID has no translation.
	FolderName(locale, folderID string) string
}

var supported = []language.Tag{language.English, language.German, language.French}

var translations = map[string]map[language.Tag]string{
	folder.RootID: {
		language.English: "Root",
		language.German:  "Stammordner",
		language.French:  "Racine",
	},
	folder.PrivateID: {
		language.English: "Private folders",
		language.German:  "Persönliche Ordner",
		language.French:  "Dossiers personnels",
	},
	folder.PublicID: {
		language.English: "Public folders",
		language.German:  "Öffentliche Ordner",
		language.French:  "Dossiers publics",
	},
	folder.SharedID: {
		language.English: "Shared folders",
		language.German:  "Freigegebene Ordner",
		language.French:  "Dossiers partagés",
	},
	folder.InfostoreID: {
		language.English: "Drive",
		language.German:  "Drive",
		language.French:  "Drive",
	},
}

// Catalog is the default Localizer backed by an x/text message catalog.
type Catalog struct {
	builder *catalog.Builder
	matcher language.Matcher
}

// NewCatalog builds the catalog of system folder names.
func NewCatalog() *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for id, names := range translations {
		for tag, name := range names {
			_ = b.SetString(tag, messageKey(id), name)
		}
	}

	return &Catalog{
		builder: b,
		matcher: language.NewMatcher(supported),
	}
}

// FolderName implements Localizer.
func (c *Catalog) FolderName(locale, folderID string) string {
	if _, ok := translations[folderID]; !ok {
		return ""
	}
	p := message.NewPrinter(c.match(locale), message.Catalog(c.builder))
	return p.Sprintf(message.Key(messageKey(folderID), translations[folderID][language.English]))
}

// match returns the supported language closest to locale.
func (c *Catalog) match(locale string) language.Tag {
	_, idx, _ := c.matcher.Match(language.Make(locale))
	return supported[idx]
}

func messageKey(folderID string) string {
	return "folder.system." + folderID
}

// EqualNames reports whether two folder names are considered equal in the
// given locale: case and width differences are ignored.
func EqualNames(locale, a, b string) bool {
	if a == b {
		return true
	}
	tag := language.Make(locale)
	if locale == "" {
		tag = language.English
	}
	c := collate.New(tag, collate.IgnoreCase, collate.IgnoreWidth)
	return c.CompareString(a, b) == 0
}
