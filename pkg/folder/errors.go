package folder

import (
	"errors"
	"fmt"
)

// Error is a domain error raised by storages and performers.
//
// Permission and naming failures carry a stable, localizable code (see
// ErrorCode.String). Infrastructure failures surface as ErrUnexpected with the
// original cause retained.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// TreeID and FolderID identify the folder related to the error (if any)
	TreeID   string
	FolderID string

	// Cause is the wrapped underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.FolderID != "" {
		msg = fmt.Sprintf("%s: folder %q", msg, e.FolderID)
		if e.TreeID != "" {
			msg = fmt.Sprintf("%s in tree %q", msg, e.TreeID)
		}
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error carrying the same code, so that
// errors.Is(err, &Error{Code: ErrEqualName}) works on wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode represents the category of a folder error.
type ErrorCode int

const (
	// ErrUnexpected wraps any non-domain failure
	ErrUnexpected ErrorCode = iota

	// ErrNotFound indicates the folder does not exist in its storage
	ErrNotFound

	// ErrNoStorageForID indicates no storage serves the tree/folder pair
	ErrNoStorageForID

	// ErrFolderNotVisible indicates the actor cannot see the folder
	ErrFolderNotVisible

	// ErrFolderNotMoveable indicates the actor may not move the folder
	ErrFolderNotMoveable

	// ErrFolderNotDeleteable indicates the actor may not delete the folder
	ErrFolderNotDeleteable

	// ErrEqualName indicates a sibling with the same name exists
	ErrEqualName

	// ErrReservedName indicates the name is reserved at that location
	ErrReservedName

	// ErrInvalidName indicates a syntactically invalid name
	ErrInvalidName

	// ErrMoveNotPermitted indicates the move target is not allowed
	ErrMoveNotPermitted

	// ErrNoDefaultFolder indicates no default folder exists for a content type
	ErrNoDefaultFolder

	// ErrNoPublicMailFolder indicates a mail folder below the public root
	ErrNoPublicMailFolder

	// ErrInvalidContentType indicates the storage cannot hold the content type
	ErrInvalidContentType

	// ErrNoCreateSubfolders indicates the actor may not create subfolders
	ErrNoCreateSubfolders

	// ErrUnsupportedOperation indicates a missing optional storage capability
	ErrUnsupportedOperation

	// ErrMissingParameter indicates a required request parameter is absent
	ErrMissingParameter

	// ErrUnknownTree indicates an unregistered tree identifier
	ErrUnknownTree

	// ErrConcurrentModification indicates the folder changed after the
	// client's last known timestamp
	ErrConcurrentModification

	// ErrNoAdminAccess indicates the actor lacks the admin right required
	// to rename a folder or change its permissions
	ErrNoAdminAccess
)

var codeNames = map[ErrorCode]string{
	ErrUnexpected:             "FLD-0001",
	ErrNotFound:               "FLD-0002",
	ErrNoStorageForID:         "FLD-0003",
	ErrFolderNotVisible:       "FLD-0004",
	ErrFolderNotMoveable:      "FLD-0005",
	ErrFolderNotDeleteable:    "FLD-0006",
	ErrEqualName:              "FLD-0007",
	ErrReservedName:           "FLD-0008",
	ErrInvalidName:            "FLD-0009",
	ErrMoveNotPermitted:       "FLD-0010",
	ErrNoDefaultFolder:        "FLD-0011",
	ErrNoPublicMailFolder:     "FLD-0012",
	ErrInvalidContentType:     "FLD-0013",
	ErrNoCreateSubfolders:     "FLD-0014",
	ErrUnsupportedOperation:   "FLD-0015",
	ErrMissingParameter:       "FLD-0016",
	ErrUnknownTree:            "FLD-0017",
	ErrConcurrentModification: "FLD-0018",
	ErrNoAdminAccess:          "FLD-0019",
}

// String returns the stable code used by clients to localize the error.
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("FLD-%04d", int(c)+1)
}

// NewError creates a folder error.
func NewError(code ErrorCode, treeID, folderID, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		TreeID:   treeID,
		FolderID: folderID,
	}
}

// NotFound is the error storages return for a missing folder.
func NotFound(treeID, folderID string) *Error {
	return NewError(ErrNotFound, treeID, folderID, "folder not found")
}

// NoStorageForID is the error of a failed registry lookup.
func NoStorageForID(treeID, folderID string) *Error {
	return NewError(ErrNoStorageForID, treeID, folderID, "no storage")
}

// NotVisible is returned when the actor cannot see a folder.
func NotVisible(treeID, folderID string, userID int) *Error {
	return NewError(ErrFolderNotVisible, treeID, folderID, "folder not visible to user %d", userID)
}

// Unexpected wraps err into an ErrUnexpected error unless it already is a
// domain error.
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Code: ErrUnexpected, Message: "unexpected error", Cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or
// ErrUnexpected when there is none.
func CodeOf(err error) ErrorCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrUnexpected
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Code == code
}

// IsNotFound reports whether err is a missing folder error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}
