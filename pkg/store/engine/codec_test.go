package engine

import (
	"testing"

	"github.com/marmos91/dittofolders/pkg/folder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEncoding(t *testing.T) {
	rec := &Record{
		Folder: &folder.Folder{
			ID: "42", TreeID: "0", ParentID: "1", Name: "Work",
			ContentType: folder.ContentCalendar, Type: folder.TypePrivate,
			SubfolderIDs: []string{},
			Permissions:  []folder.Permission{folder.OwnerPermission(7)},
		},
		FixedSubfolders: true,
		TrashOrigin:     "10",
		Objects:         []int{7, 8},
	}

	data, err := EncodeRecord(rec)
	require.NoError(t, err)

	got, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Folder.ID, got.Folder.ID)
	assert.Equal(t, rec.Folder.Name, got.Folder.Name)
	assert.Equal(t, rec.Folder.Permissions, got.Folder.Permissions)
	assert.True(t, got.FixedSubfolders)
	assert.Equal(t, "10", got.TrashOrigin)
	assert.Equal(t, []int{7, 8}, got.Objects)

	_, err = DecodeRecord([]byte(`{}`))
	assert.Error(t, err)
}
