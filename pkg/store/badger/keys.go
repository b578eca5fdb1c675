package badger

import "strings"

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organize the data into
// logical namespaces and make per-tree range scans cheap.
//
// Data Type    Prefix  Key Format              Value Type
// =====================================================================
// Folder       "f:"    f:<treeID>:<folderID>   engine.Record (JSON)
// Tombstone    "t:"    t:<treeID>:<folderID>   deletion time (unix nanos, big endian)
//
// Tree ids never contain ':' so "f:<treeID>:" selects exactly one tree even
// when folder ids do.

const (
	prefixFolder    = "f:"
	prefixTombstone = "t:"
)

func keyFolder(treeID, folderID string) []byte {
	return []byte(prefixFolder + treeID + ":" + folderID)
}

func keyTombstone(treeID, folderID string) []byte {
	return []byte(prefixTombstone + treeID + ":" + folderID)
}

func prefixFolders(treeID string) []byte {
	return []byte(prefixFolder + treeID + ":")
}

func prefixTombstones(treeID string) []byte {
	return []byte(prefixTombstone + treeID + ":")
}

// folderIDFromKey extracts the folder id from a key built with prefix p.
func folderIDFromKey(key, p []byte) string {
	return strings.TrimPrefix(string(key), string(p))
}
