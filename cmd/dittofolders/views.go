package main

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/marmos91/dittofolders/pkg/performer"
)

type folderView struct {
	ID           string   `yaml:"id"`
	Tree         string   `yaml:"tree"`
	Parent       string   `yaml:"parent,omitempty"`
	Name         string   `yaml:"name"`
	ContentType  string   `yaml:"content_type,omitempty"`
	Type         string   `yaml:"type,omitempty"`
	Default      bool     `yaml:"default,omitempty"`
	Subscribed   bool     `yaml:"subscribed"`
	Subfolders   string   `yaml:"subfolders"`
	SubfolderIDs []string `yaml:"subfolder_ids,omitempty"`
	Permission   string   `yaml:"permission,omitempty"`
	Created      string   `yaml:"created,omitempty"`
	Modified     string   `yaml:"modified,omitempty"`
}

type warningView struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
	Tree    string `yaml:"tree,omitempty"`
	Folder  string `yaml:"folder,omitempty"`
}

type listView struct {
	Folders  []folderView  `yaml:"folders"`
	Total    int           `yaml:"total,omitempty"`
	Warnings []warningView `yaml:"warnings,omitempty"`
}

type updatesView struct {
	Modified []folderView  `yaml:"modified"`
	Deleted  []string      `yaml:"deleted"`
	Warnings []warningView `yaml:"warnings,omitempty"`
}

func newFolderView(f *folder.UserizedFolder) folderView {
	v := folderView{
		ID:          f.ID,
		Tree:        f.TreeID,
		Parent:      f.ParentID,
		Name:        f.DisplayName(),
		ContentType: string(f.ContentType),
		Type:        string(f.Type),
		Default:     f.Default,
		Subscribed:  f.Subscribed,
		Subfolders:  f.Subfolders.String(),
		Permission:  permissionString(f.OwnPermission),
		Created:     formatTime(f.CreationDate),
		Modified:    formatTime(f.LastModified),
	}
	if f.Subfolders == folder.SubfoldersComputed {
		v.SubfolderIDs = f.SubfolderIDs
	}
	return v
}

func newListView(folders []*folder.UserizedFolder, warnings []folder.Warning) listView {
	v := listView{
		Folders:  make([]folderView, 0, len(folders)),
		Warnings: newWarningViews(warnings),
	}
	for _, f := range folders {
		v.Folders = append(v.Folders, newFolderView(f))
	}
	return v
}

func newUpdatesView(res *performer.UpdatesResult) updatesView {
	v := updatesView{
		Modified: make([]folderView, 0, len(res.Modified)),
		Deleted:  make([]string, 0, len(res.Deleted)),
		Warnings: newWarningViews(res.Warnings),
	}
	for _, f := range res.Modified {
		v.Modified = append(v.Modified, newFolderView(f))
	}
	for _, f := range res.Deleted {
		v.Deleted = append(v.Deleted, f.ID)
	}
	return v
}

func newWarningViews(warnings []folder.Warning) []warningView {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]warningView, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, warningView{
			Code:    w.Code.String(),
			Message: w.Message,
			Tree:    w.TreeID,
			Folder:  w.FolderID,
		})
	}
	return out
}

// permissionString renders a permission in the compact "fRWDa" form:
// folder right, read, write and delete ordinals, then the admin flag.
func permissionString(p folder.Permission) string {
	digits := []byte{
		byte('0' + p.Folder),
		byte('0' + p.Read),
		byte('0' + p.Write),
		byte('0' + p.Delete),
	}
	if p.Admin {
		return string(digits) + "a"
	}
	return string(digits)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
