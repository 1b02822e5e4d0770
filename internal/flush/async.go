package flush

import (
	"sync"
	"time"

	"duraq/internal/checkpoint"
)

// shutdownFlushRetries is how many times Stop calls Flush(0) before
// returning: one msync only ever catches up the segment committedWhere
// currently points at, so a log with several unflushed segments queued
// up behind a burst of rotations needs more than one pass to fully
// drain on the way out.
const shutdownFlushRetries = 3

// AsyncFlusher periodically msyncs the segment queue's unflushed
// segment (the one its flushed position points into) on a timer,
// independent of any particular PutMessage call. Grounded on the
// teacher's RetentionCleaner (ticker + stopCh + sync.WaitGroup run
// loop) and on CommitLog's FlushRealTimeService: a normal tick flushes
// only once the dirty region reaches leastPages pages, while every
// thoroughInterval it forces an unconditional flush so a quiet log
// still gets fully synced eventually.
type AsyncFlusher struct {
	target           Target
	interval         time.Duration
	leastPages       int32
	thoroughInterval time.Duration
	checkpoint       *checkpoint.StoreCheckpoint

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAsyncFlusher builds a flusher that msyncs target on a timer. cp may
// be nil, in which case the on-disk checkpoint is simply never advanced.
func NewAsyncFlusher(target Target, interval time.Duration, leastPages int32, thoroughInterval time.Duration, cp *checkpoint.StoreCheckpoint) *AsyncFlusher {
	return &AsyncFlusher{
		target:           target,
		interval:         interval,
		leastPages:       leastPages,
		thoroughInterval: thoroughInterval,
		checkpoint:       cp,
		stopCh:           make(chan struct{}),
	}
}

func (f *AsyncFlusher) Start() {
	f.wg.Add(1)
	go f.run()
}

func (f *AsyncFlusher) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	lastThorough := time.Now()

	for {
		select {
		case <-ticker.C:
			leastPages := f.leastPages
			if time.Since(lastThorough) >= f.thoroughInterval {
				leastPages = 0
				lastThorough = time.Now()
			}
			f.target.Flush(leastPages)
			f.checkpointFlush()
		case <-f.stopCh:
			for i := 0; i < shutdownFlushRetries; i++ {
				f.target.Flush(0)
			}
			f.checkpointFlush()
			return
		}
	}
}

// checkpointFlush advances the on-disk checkpoint to the tail's most
// recent StoreTimestamp, a no-op when no checkpoint was configured.
func (f *AsyncFlusher) checkpointFlush() {
	if f.checkpoint == nil {
		return
	}
	f.checkpoint.SetCommitLogTimestamp(f.target.StoreTimestamp())
	_ = f.checkpoint.Flush()
}

func (f *AsyncFlusher) Stop() {
	close(f.stopCh)
	f.wg.Wait()
}

func (f *AsyncFlusher) WaitFlush(int64, time.Duration) bool { return true }

func (f *AsyncFlusher) FlushedPosition() int64 { return f.target.FlushedPosition() }
