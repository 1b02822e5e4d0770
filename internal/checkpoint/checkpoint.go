package checkpoint

import (
	"encoding/binary"
	"os"
	"sync"
)

// StoreCheckpoint is the tiny fixed-size file recording the minimum
// flushed timestamp of the commit log (and, in a full broker, the
// consume-queue and index-file checkpoints alongside it — only the
// commit-log field is in scope here). Abnormal recovery uses
// CommitLogTimestamp to decide which segments are trustworthy without
// having to re-scan everything from the start.
type StoreCheckpoint struct {
	mu   sync.Mutex
	path string
	file *os.File
	data []byte

	CommitLogTimestamp int64
}

const checkpointFileSize = 4096 // one OS page, matching the original's mmap'd checkpoint file

// Load opens or creates the checkpoint file at path, reading back
// whatever timestamp was last persisted.
func Load(path string) (*StoreCheckpoint, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < checkpointFileSize {
		if err := f.Truncate(checkpointFileSize); err != nil {
			f.Close()
			return nil, err
		}
	}

	cp := &StoreCheckpoint{path: path, file: f, data: make([]byte, checkpointFileSize)}
	if _, err := f.ReadAt(cp.data, 0); err != nil {
		f.Close()
		return nil, err
	}
	cp.CommitLogTimestamp = int64(binary.BigEndian.Uint64(cp.data[0:8]))
	return cp, nil
}

// SetCommitLogTimestamp records the new checkpoint value in memory;
// Flush persists it.
func (cp *StoreCheckpoint) SetCommitLogTimestamp(ts int64) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.CommitLogTimestamp = ts
}

// Flush writes the current timestamp to disk and fsyncs it. Called
// periodically by the store, never on the hot append path.
func (cp *StoreCheckpoint) Flush() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	binary.BigEndian.PutUint64(cp.data[0:8], uint64(cp.CommitLogTimestamp))
	if _, err := cp.file.WriteAt(cp.data, 0); err != nil {
		return err
	}
	return cp.file.Sync()
}

func (cp *StoreCheckpoint) Close() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.file.Close()
}
