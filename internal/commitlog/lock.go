package commitlog

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// putLock is the single-writer critical section guard PutMessage and
// AppendRaw hold. useReentrantLockWhenPutMessage selects between the two
// implementations below, mirroring CommitLog's choice between a
// ReentrantLock and its own CAS-based PutMessageSpinLock.
type putLock interface {
	Lock()
	Unlock()
}

// newPutLock returns a plain mutex when useReentrantLock is set
// (CommitLog's ReentrantLock path — blocking, with no fairness
// guarantee), or a spin-lock
// otherwise, which is the original's default for a low-contention
// single-writer critical section.
func newPutLock(useReentrantLock bool) putLock {
	if useReentrantLock {
		return &sync.Mutex{}
	}
	return &spinLock{}
}

// spinLock is a CAS busy-wait lock, the idiomatic-Go shape of the
// original's AtomicBoolean-backed PutMessageSpinLock.
type spinLock struct {
	held atomic.Bool
}

func (s *spinLock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinLock) Unlock() {
	s.held.Store(false)
}
