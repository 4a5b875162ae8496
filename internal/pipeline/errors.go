package pipeline

import (
	"errors"
	"fmt"

	"github.com/thebtf/shotnamer/internal/naming"
	"github.com/thebtf/shotnamer/pkg/models"
)

// Code identifies why a pipeline run left the file untouched.
type Code string

const (
	CodeAbandoned          Code = "ABANDONED"
	CodeReadFailed         Code = "READ_FAILED"
	CodeCaptionFailed      Code = "CAPTION_FAILED"
	CodeSanitizeFailed     Code = "SANITIZE_FAILED"
	CodeCollisionExhausted Code = "COLLISION_EXHAUSTED"
	CodeResolveFailed      Code = "RESOLVE_FAILED"
	CodeRenameFailed       Code = "RENAME_FAILED"
)

// Error is a per-file failure. It never stops the watcher.
type Error struct {
	Code  Code
	Stage models.Stage
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewAbandoned creates an error for a run cut short by shutdown.
func NewAbandoned(stage models.Stage, path string, err error) *Error {
	return &Error{Code: CodeAbandoned, Stage: stage, Path: path, Err: err}
}

// NewReadFailed creates an error for an unreadable source file.
func NewReadFailed(path string, err error) *Error {
	return &Error{Code: CodeReadFailed, Stage: models.StageAnalyzing, Path: path, Err: err}
}

// NewCaptionFailed creates an error for a failed caption request.
func NewCaptionFailed(path string, err error) *Error {
	return &Error{Code: CodeCaptionFailed, Stage: models.StageAnalyzing, Path: path, Err: err}
}

// NewSanitizeFailed creates an error for a caption that yields no usable name.
func NewSanitizeFailed(path, caption string, err error) *Error {
	return &Error{Code: CodeSanitizeFailed, Stage: models.StageAnalyzing, Path: path, Err: fmt.Errorf("caption %q: %w", caption, err)}
}

// NewResolveFailed creates an error for a target name that could not be chosen.
func NewResolveFailed(path string, err error) *Error {
	code := CodeResolveFailed
	if errors.Is(err, naming.ErrCollisionExhausted) {
		code = CodeCollisionExhausted
	}
	return &Error{Code: code, Stage: models.StageRenaming, Path: path, Err: err}
}

// NewRenameFailed creates an error for an OS-level rename failure.
func NewRenameFailed(path string, err error) *Error {
	return &Error{Code: CodeRenameFailed, Stage: models.StageRenaming, Path: path, Err: err}
}

// Is checks if err is a pipeline Error with the given code.
func Is(err error, code Code) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}

// CodeOf returns the code of a pipeline Error, or "" for other errors.
func CodeOf(err error) Code {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return ""
}
