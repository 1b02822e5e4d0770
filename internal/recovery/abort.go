package recovery

import (
	"os"
	"path/filepath"
)

// abortFileName marks a commit log directory as "currently open": present
// at startup means the previous process never reached a clean Close, so
// RecoverAbnormally should run instead of RecoverNormally. Grounded on
// the original's operational convention of a sentinel "abort" file under
// the store root, recreated every startup and removed only on a clean
// shutdown — spec.md §4.6 names the condition ("clean shutdown marker
// present") without pinning the mechanism, so this is an Open Question
// resolution rather than a literal port.
const abortFileName = "abort"

// WasCleanShutdown reports whether dir's abort marker is absent, meaning
// the process that last had this commit log open called MarkStopped
// before exiting.
func WasCleanShutdown(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, abortFileName))
	return os.IsNotExist(err)
}

// MarkRunning creates the abort marker, called once a commit log
// directory is opened. If the process crashes before MarkStopped runs,
// the marker's continued presence tells the next startup to recover
// abnormally.
func MarkRunning(dir string) error {
	return os.WriteFile(filepath.Join(dir, abortFileName), nil, 0644)
}

// MarkStopped removes the abort marker on a clean shutdown. A missing
// marker is not an error — MarkRunning may never have been called, or
// this may be a second call.
func MarkStopped(dir string) error {
	err := os.Remove(filepath.Join(dir, abortFileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
