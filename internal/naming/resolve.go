package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxCollisions bounds the numeric suffixes Resolve will try.
const MaxCollisions = 10000

// ErrCollisionExhausted is returned when every suffix up to MaxCollisions is taken.
var ErrCollisionExhausted = errors.New("too many existing files with the same name")

// lstat is swapped in tests.
var lstat = os.Lstat

// Resolve returns the first free path among dir/stem.ext, dir/stem_1.ext,
// dir/stem_2.ext and so on. ext may be given with or without its leading dot.
//
// The check is not atomic: another process can create the returned path
// before the caller uses it.
func Resolve(dir, stem, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext != "" {
		ext = "." + ext
	}

	for i := 0; i <= MaxCollisions; i++ {
		name := stem + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		candidate := filepath.Join(dir, name)

		_, err := lstat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf("%s%s in %s: %w", stem, ext, dir, ErrCollisionExhausted)
}
