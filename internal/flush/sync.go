package flush

import (
	"sync"
	"time"

	"duraq/internal/checkpoint"
)

// groupCommitRequest is one PutMessage call's interest in seeing
// physicalOffset durably flushed.
type groupCommitRequest struct {
	physicalOffset int64
	doneCh         chan bool
}

// wakeupInterval is how often the commit loop polls for pending
// requests even with nothing new submitted, matching GroupCommitService's
// hardcoded 10ms wait-point granularity.
const wakeupInterval = 10 * time.Millisecond

// syncFlushMaxAttempts bounds how many times doCommit calls Flush(0) per
// batch. Flush only ever advances committedWhere across one segment at
// a time, so a request submitted right as a rotation lands may need a
// second call to actually reach the offset it's waiting on.
const syncFlushMaxAttempts = 2

// SyncGroupFlusher batches concurrent PutMessage callers waiting on
// durability into a single msync pass per tick, the group-commit
// pattern CommitLog's GroupCommitService implements with a pair of
// request slices swapped under a lock (requestsWrite/requestsRead)
// rather than a channel. This repo swaps two slices the same way but
// drives the swap from a goroutine reading a channel (the idiomatic-Go
// equivalent of Java's wait/notify, grounded on the ticker+channel
// batching shape in the group-committer reference in the pack) instead
// of translating the wait/notify calls literally.
type SyncGroupFlusher struct {
	target     Target
	checkpoint *checkpoint.StoreCheckpoint

	mu           sync.Mutex
	requestsWrite []*groupCommitRequest

	submitCh chan *groupCommitRequest
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSyncGroupFlusher builds a group-commit flusher around target. cp may
// be nil, in which case the on-disk checkpoint is simply never advanced.
func NewSyncGroupFlusher(target Target, cp *checkpoint.StoreCheckpoint) *SyncGroupFlusher {
	return &SyncGroupFlusher{
		target:     target,
		checkpoint: cp,
		submitCh:   make(chan *groupCommitRequest, 1024),
		stopCh:     make(chan struct{}),
	}
}

func (f *SyncGroupFlusher) Start() {
	f.wg.Add(1)
	go f.run()
}

func (f *SyncGroupFlusher) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(wakeupInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-f.submitCh:
			f.mu.Lock()
			f.requestsWrite = append(f.requestsWrite, req)
			f.mu.Unlock()
		case <-ticker.C:
			f.doCommit()
		case <-f.stopCh:
			f.doCommit()
			return
		}
	}
}

// doCommit swaps the pending-request slice out from under new submitters,
// flushes up to syncFlushMaxAttempts times (stopping as soon as the
// largest pending offset is covered), then resolves every swapped-out
// request against the new flushed position — one pass serving however
// many requests piled up since the last tick.
func (f *SyncGroupFlusher) doCommit() {
	f.mu.Lock()
	pending := f.requestsWrite
	f.requestsWrite = nil
	f.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	var flushed int64
	for attempt := 0; attempt < syncFlushMaxAttempts; attempt++ {
		flushed = f.target.Flush(0)
		if flushed >= maxRequestedOffset(pending) {
			break
		}
	}

	if f.checkpoint != nil {
		f.checkpoint.SetCommitLogTimestamp(f.target.StoreTimestamp())
		_ = f.checkpoint.Flush()
	}

	for _, req := range pending {
		req.doneCh <- flushed >= req.physicalOffset
	}
}

// maxRequestedOffset is the largest physicalOffset among pending, used
// to decide whether one flush(0) pass already covered every waiter in
// this batch or whether a second pass is needed.
func maxRequestedOffset(pending []*groupCommitRequest) int64 {
	var max int64
	for _, req := range pending {
		if req.physicalOffset > max {
			max = req.physicalOffset
		}
	}
	return max
}

func (f *SyncGroupFlusher) Stop() {
	close(f.stopCh)
	f.wg.Wait()
}

// WaitFlush submits a request and blocks for at most timeout waiting for
// the commit loop to resolve it.
func (f *SyncGroupFlusher) WaitFlush(physicalOffset int64, timeout time.Duration) bool {
	if f.target.FlushedPosition() >= physicalOffset {
		return true
	}

	req := &groupCommitRequest{physicalOffset: physicalOffset, doneCh: make(chan bool, 1)}

	select {
	case f.submitCh <- req:
	case <-time.After(timeout):
		return false
	}

	select {
	case ok := <-req.doneCh:
		return ok
	case <-time.After(timeout):
		return false
	}
}

func (f *SyncGroupFlusher) FlushedPosition() int64 { return f.target.FlushedPosition() }
