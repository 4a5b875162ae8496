package pipeline

import (
	"errors"
	"fmt"
	"os"
)

// Swappable so tests can simulate failures at each step.
var (
	linkFunc   = os.Link
	removeFunc = os.Remove
	renameFunc = os.Rename
	lstatFunc  = os.Lstat
)

// TargetExistsError reports that the rename target appeared after it was
// resolved, so the source was left in place.
type TargetExistsError struct {
	Src string
	Dst string
}

func (e *TargetExistsError) Error() string {
	return fmt.Sprintf("rename %q -> %q: target already exists", e.Src, e.Dst)
}

// IsTargetExists reports whether err is a TargetExistsError.
func IsTargetExists(err error) bool {
	var e *TargetExistsError
	return errors.As(err, &e)
}

// renameNoReplace moves src to dst without ever overwriting dst.
//
// A hard link is tried first because link creation fails atomically when dst
// exists. Filesystems without hard links fall back to a check followed by
// rename, which can lose a race with another writer.
func renameNoReplace(src, dst string) error {
	err := linkFunc(src, dst)
	switch {
	case err == nil:
		if rmErr := removeFunc(src); rmErr != nil {
			_ = removeFunc(dst)
			return fmt.Errorf("remove %q after linking: %w", src, rmErr)
		}
		return nil
	case errors.Is(err, os.ErrExist):
		return &TargetExistsError{Src: src, Dst: dst}
	case errors.Is(err, os.ErrNotExist):
		return err
	}

	if _, statErr := lstatFunc(dst); statErr == nil {
		return &TargetExistsError{Src: src, Dst: dst}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}
	return renameFunc(src, dst)
}
