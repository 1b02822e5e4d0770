package segment

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile owns one fixed-size memory-mapped file: the open fd and the
// byte slice backing it. A Segment embeds one of these for its raw
// storage and layers append/flush/view semantics on top.
type mmapFile struct {
	file *os.File
	data []byte
}

// openMmapFile opens or creates path, sizes it to exactly size bytes and
// maps it PROT_READ|PROT_WRITE. The returned existed flag tells the
// caller whether the file already held size bytes before this call —
// i.e. whether this is a segment being reopened rather than created —
// so Segment can seed its write cursor at the full file size the way
// load() does for every segment that isn't the one the recoverer is
// about to correct.
func openMmapFile(path string, size int64) (*mmapFile, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	existed := fi.Size() >= size
	if fi.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, false, err
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, false, err
	}

	return &mmapFile{file: f, data: data}, existed, nil
}

func (m *mmapFile) msync() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mmapFile) mlock() error {
	return unix.Mlock(m.data)
}

func (m *mmapFile) munlock() error {
	return unix.Munlock(m.data)
}

// madviseWillNeed hints the kernel to read the whole mapping ahead of
// time, used when a segment is reopened for recovery and is about to be
// scanned start to finish.
func (m *mmapFile) madviseWillNeed() error {
	return unix.Madvise(m.data, unix.MADV_WILLNEED)
}

// close msyncs, unmaps and closes the file without truncating it: every
// segment file stays exactly its configured size on disk, zero-padded
// past whatever was actually written, so a reopen can always memory-map
// the same fixed-size window without first checking how much of it is
// real data.
func (m *mmapFile) close() error {
	_ = m.msync()
	if err := unix.Munmap(m.data); err != nil {
		return err
	}
	return m.file.Close()
}

func (m *mmapFile) destroy() error {
	path := m.file.Name()
	_ = unix.Munmap(m.data)
	_ = m.file.Close()
	return os.Remove(path)
}
