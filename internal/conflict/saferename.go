package conflict

import (
	"fmt"
	"os"
)

// ErrRetryNeeded signals that a SafeRename was aborted because the file was
// modified during the rename window — the caller must retry detection from
// scratch.
var ErrRetryNeeded = fmt.Errorf("conflict: retry needed")

// renameFunc is a seam over os.Rename so tests can inject a race between the
// rename and the post-rename stat.
var renameFunc = os.Rename

// SafeRename renames srcPath to dstPath, guarding against the race where the
// user saves the file again mid-rename: it captures srcPath's mtime before renaming, then re-stats the
// renamed file and renames back — returning ErrRetryNeeded — if the mtime
// changed underneath it.
func SafeRename(srcPath, dstPath string) error {
	before, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("conflict: stat before rename: %w", err)
	}

	beforeMtime := before.ModTime()

	if err := renameFunc(srcPath, dstPath); err != nil {
		return fmt.Errorf("conflict: rename %s to %s: %w", srcPath, dstPath, err)
	}

	after, err := os.Stat(dstPath)
	if err != nil {
		return fmt.Errorf("conflict: stat after rename: %w", err)
	}

	if !after.ModTime().Equal(beforeMtime) {
		if renameBackErr := renameFunc(dstPath, srcPath); renameBackErr != nil {
			return fmt.Errorf("conflict: renaming back after detected race: %w", renameBackErr)
		}

		return ErrRetryNeeded
	}

	return nil
}
