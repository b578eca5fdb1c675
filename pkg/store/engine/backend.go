package engine

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittofolders/pkg/folder"
)

// ErrNoRecord is returned by Tx.Get when the record does not exist.
var ErrNoRecord = errors.New("record not found")

// Record is the persisted form of a folder together with the bookkeeping the
// engine needs around it.
type Record struct {
	Folder *folder.Folder `json:"folder" bson:"folder"`

	// FixedSubfolders marks Folder.SubfolderIDs as a persisted, precomputed
	// list. Otherwise subfolders are derived from the records on every read.
	FixedSubfolders bool `json:"fixed_subfolders,omitempty" bson:"fixed_subfolders,omitempty"`

	// TrashOrigin is the parent the folder had before it was trashed.
	TrashOrigin string `json:"trash_origin,omitempty" bson:"trash_origin,omitempty"`

	// Objects holds the creator id of every object stored in the folder.
	Objects []int `json:"objects,omitempty" bson:"objects,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Folder:          r.Folder.Clone(),
		FixedSubfolders: r.FixedSubfolders,
		TrashOrigin:     r.TrashOrigin,
	}
	if r.Objects != nil {
		c.Objects = append([]int(nil), r.Objects...)
	}
	return c
}

// Backend persists folder records. It is the only part a concrete storage
// (memory, badger, s3, postgres, mongo) has to provide.
type Backend interface {
	// Begin opens a transaction. Read-only transactions (modify=false) never
	// receive Put or Delete calls.
	Begin(ctx context.Context, modify bool) (Tx, error)

	// Close releases backend resources.
	Close() error
}

// Tx is a backend transaction. A Tx is used by one goroutine at a time.
//
// Reads observe the transaction's own writes. Exactly one of Commit or
// Rollback terminates it.
type Tx interface {
	// Get loads a record. Returns ErrNoRecord when it does not exist.
	Get(ctx context.Context, treeID, id string) (*Record, error)

	// Put inserts or replaces a record.
	Put(ctx context.Context, treeID string, rec *Record) error

	// Delete removes a record and leaves a tombstone dated deletedAt.
	Delete(ctx context.Context, treeID, id string, deletedAt time.Time) error

	// Scan returns every live record of a tree.
	Scan(ctx context.Context, treeID string) ([]*Record, error)

	// Tombstones returns the ids deleted after since.
	Tombstones(ctx context.Context, treeID string, since time.Time) ([]string, error)

	// HasTombstone reports whether the id was ever deleted.
	HasTombstone(ctx context.Context, treeID, id string) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
