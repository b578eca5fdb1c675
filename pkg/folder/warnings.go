package folder

import "errors"

// Warning is a non-fatal condition collected while executing an operation,
// such as a single folder of a batch that could not be loaded.
type Warning struct {
	Code     ErrorCode
	Message  string
	TreeID   string
	FolderID string

	// Cause is the error the warning was built from, if any.
	Cause error
}

// WarningFromError converts err into a warning about the given folder.
func WarningFromError(err error, treeID, folderID string) Warning {
	w := Warning{
		Code:     CodeOf(err),
		Message:  err.Error(),
		TreeID:   treeID,
		FolderID: folderID,
		Cause:    err,
	}
	var fe *Error
	if errors.As(err, &fe) {
		w.Message = fe.Message
		if fe.Cause != nil {
			w.Message += ": " + fe.Cause.Error()
		}
		if fe.TreeID != "" {
			w.TreeID = fe.TreeID
		}
		if fe.FolderID != "" {
			w.FolderID = fe.FolderID
		}
	}
	return w
}

// Error renders the warning message.
func (w Warning) Error() string {
	return w.Message
}

// AsError escalates the warning into a hard error. The error the warning
// was built from stays reachable through errors.Is and errors.As.
func (w Warning) AsError() *Error {
	e := &Error{
		Code:     w.Code,
		Message:  w.Message,
		TreeID:   w.TreeID,
		FolderID: w.FolderID,
	}
	if w.Cause == nil {
		return e
	}
	var fe *Error
	if errors.As(w.Cause, &fe) {
		e.Message = fe.Message
	} else {
		e.Message = "unexpected error"
	}
	e.Cause = w.Cause
	return e
}
