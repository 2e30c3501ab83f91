package workspace

import (
	"errors"
	"io/fs"
)

// Error codes reported by the Service.
const (
	CodeAccess        = "EACCES"
	CodeExists        = "EEXIST"
	CodeNotFound      = "ENOENT"
	CodeGitInitFailed = "GIT_INIT_FAILED"
	CodeSetupFailed   = "SETUP_FAILED"
	CodeRemoveFailed  = "REMOVE_FAILED"
)

// Error is a failed workspace operation with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Unwrap() error { return e.Err }

// codeError wraps err, taking the code from the filesystem error class
// when there is one.
func codeError(err error, fallback string) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}

	code := fallback
	switch {
	case errors.Is(err, fs.ErrPermission):
		code = CodeAccess
	case errors.Is(err, fs.ErrExist):
		code = CodeExists
	case errors.Is(err, fs.ErrNotExist):
		code = CodeNotFound
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// CodeOf returns the code of a workspace error, or "" for other errors.
func CodeOf(err error) string {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
