package segment

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName returns the on-disk name for a segment whose first physical
// offset is baseOffset: the offset zero-padded to 20 digits, matching the
// original's fixed-width segment-file naming so directory listings sort
// in offset order without parsing.
func FileName(dir string, baseOffset int64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d", baseOffset))
}

// RemoveFile deletes the segment file for baseOffset under dir. Missing
// files are not an error — a caller retrying a delete after a partial
// failure should not fail again on the part that already succeeded.
func RemoveFile(dir string, baseOffset int64) error {
	path := FileName(dir, baseOffset)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("segment: remove %s: %w", path, err)
	}
	return nil
}
