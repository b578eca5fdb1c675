package permission

import (
	"context"
	"testing"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestACLCalculator(t *testing.T) {
	calc := NewACLCalculator()
	ctx := context.Background()
	session := &folder.Session{UserID: 5, Groups: []int{20}}

	tests := []struct {
		name        string
		folder      *folder.Folder
		allowed     []folder.ContentType
		wantVisible bool
		wantAdmin   bool
		wantCreate  bool
	}{
		{
			name: "user entry",
			folder: &folder.Folder{
				Type:        folder.TypePublic,
				ContentType: folder.ContentCalendar,
				Permissions: []folder.Permission{{Entity: 5, Folder: folder.FolderVisible, Read: folder.ObjectAll}},
			},
			wantVisible: true,
		},
		{
			name: "group entry merged with user entry",
			folder: &folder.Folder{
				Type:        folder.TypePublic,
				ContentType: folder.ContentCalendar,
				Permissions: []folder.Permission{
					{Entity: 5, Folder: folder.FolderVisible},
					{Entity: 20, Group: true, Folder: folder.FolderCreateSubfolders},
				},
			},
			wantVisible: true,
			wantCreate:  true,
		},
		{
			name: "foreign entries only",
			folder: &folder.Folder{
				Type:        folder.TypePublic,
				ContentType: folder.ContentCalendar,
				Permissions: []folder.Permission{
					{Entity: 6, Folder: folder.FolderMax, Admin: true},
					{Entity: 21, Group: true, Folder: folder.FolderMax},
				},
			},
		},
		{
			name: "creator of private folder",
			folder: &folder.Folder{
				Type:        folder.TypePrivate,
				ContentType: folder.ContentTasks,
				CreatedBy:   5,
			},
			wantVisible: true,
			wantAdmin:   true,
			wantCreate:  true,
		},
		{
			name: "content type not allowed",
			folder: &folder.Folder{
				Type:        folder.TypePrivate,
				ContentType: folder.ContentTasks,
				CreatedBy:   5,
			},
			allowed: []folder.ContentType{folder.ContentMail},
		},
		{
			name: "system folder ignores content type restriction",
			folder: &folder.Folder{
				Type:        folder.TypeSystem,
				ContentType: folder.ContentSystem,
				Permissions: []folder.Permission{folder.SystemReadPermission()},
			},
			allowed:     []folder.ContentType{folder.ContentMail},
			wantVisible: true,
			wantCreate:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := calc.Calculate(ctx, tt.folder, session, tt.allowed)
			require.NoError(t, err)

			assert.Equal(t, tt.wantVisible, p.Visible())
			assert.Equal(t, tt.wantAdmin, p.Admin)
			assert.Equal(t, tt.wantCreate, p.CanCreateSubfolders())
			assert.Equal(t, 5, p.Entity)
			assert.False(t, p.IsSystem())
		})
	}
}

func TestACLCalculator_NilInputs(t *testing.T) {
	p, err := NewACLCalculator().Calculate(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, p.Visible())
}

func TestChanged(t *testing.T) {
	system := folder.SystemReadPermission()
	alice := folder.Permission{Entity: 1, Folder: folder.FolderVisible}
	bob := folder.Permission{Entity: 2, Folder: folder.FolderVisible}
	bobAdmin := folder.Permission{Entity: 2, Folder: folder.FolderMax, Admin: true}

	tests := []struct {
		name     string
		current  []folder.Permission
		incoming []folder.Permission
		want     bool
	}{
		{"identical", []folder.Permission{alice, bob}, []folder.Permission{alice, bob}, false},
		{"reordered", []folder.Permission{alice, bob}, []folder.Permission{bob, alice}, false},
		{"system entries ignored", []folder.Permission{alice, system}, []folder.Permission{alice}, false},
		{"added", []folder.Permission{alice}, []folder.Permission{alice, bob}, true},
		{"removed", []folder.Permission{alice, bob}, []folder.Permission{alice}, true},
		{"modified", []folder.Permission{alice, bob}, []folder.Permission{alice, bobAdmin}, true},
		{"group and user with same id differ", []folder.Permission{alice}, []folder.Permission{{Entity: 1, Group: true, Folder: folder.FolderVisible}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Changed(tt.current, tt.incoming))
		})
	}
}

func TestDiff(t *testing.T) {
	alice := folder.Permission{Entity: 1, Folder: folder.FolderVisible}
	bob := folder.Permission{Entity: 2, Folder: folder.FolderVisible}
	bobAdmin := folder.Permission{Entity: 2, Folder: folder.FolderMax, Admin: true}
	carol := folder.Permission{Entity: 3, Folder: folder.FolderVisible}

	added, removed, modified := Diff(
		[]folder.Permission{alice, bob},
		[]folder.Permission{bobAdmin, carol},
	)

	assert.Equal(t, []folder.Permission{carol}, added)
	assert.Equal(t, []folder.Permission{alice}, removed)
	assert.Equal(t, []folder.Permission{bobAdmin}, modified)
}

func TestMergeSystem(t *testing.T) {
	system := folder.SystemReadPermission()
	alice := folder.Permission{Entity: 1, Folder: folder.FolderVisible}

	merged := MergeSystem([]folder.Permission{system}, []folder.Permission{alice, {Entity: 9, System: 2}})

	assert.Equal(t, []folder.Permission{alice, system}, merged)
}
