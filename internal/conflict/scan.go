package conflict

import (
	"io/fs"
	"path/filepath"
)

// ConflictCopy pairs a conflict-copy file (sync-root-relative) with the
// original path it was renamed from on detection.
type ConflictCopy struct {
	CopyPath     string
	OriginalPath string
}

// FindConflictCopies walks syncRoot for conflict-copy files and returns
// each alongside its recovered original path. A conflict copy is the only
// on-disk record of a pending conflict — there is no separate ledger — so
// this scan is how 'status' and 'resolve' discover what needs attention.
func FindConflictCopies(syncRoot string) ([]ConflictCopy, error) {
	var copies []ConflictCopy

	err := filepath.WalkDir(syncRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if !IsConflictCopy(path) {
			return nil
		}

		original, ok := OriginalPath(path)
		if !ok {
			return nil
		}

		relCopy, err := filepath.Rel(syncRoot, path)
		if err != nil {
			return nil
		}

		relOriginal, err := filepath.Rel(syncRoot, original)
		if err != nil {
			return nil
		}

		copies = append(copies, ConflictCopy{CopyPath: relCopy, OriginalPath: relOriginal})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return copies, nil
}
