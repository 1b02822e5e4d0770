package commitlog

import (
	"net"
	"time"

	"duraq/internal/checkpoint"
	"duraq/internal/config"
	"duraq/internal/dispatch"
	"duraq/internal/flush"
	"duraq/internal/ha"
	"duraq/internal/metrics"
	"duraq/internal/segment"
	"duraq/internal/wire"
	"duraq/internal/xlog"
)

// Engine is the whole commit log: the segment queue, the put-lock
// critical section, the flusher that backs durability, and the
// collaborators an append needs to hand work off to without blocking on
// it (dispatch, HA, metrics).
type Engine struct {
	queue      *SegmentQueue
	topics     *TopicQueueTable
	dispatch   dispatch.Sink
	ha         ha.Service
	metrics    *metrics.Collector
	cfg        config.Config
	flusher    flush.Flusher
	cleaner    *RetentionCleaner
	checkpoint *checkpoint.StoreCheckpoint
	log        *xlog.Logger

	storeHost *net.TCPAddr

	putMu putLock
}

// New opens (or creates) the engine's storage directory and starts its
// background flusher. It does not run crash recovery: a queue freshly
// opened by NewSegmentQueue treats every existing segment as fully
// written (see SegmentQueue/Segment docs), so a caller reopening a
// directory that was ever used before must run an internal/recovery
// Recoverer pass against the queue first. Use NewWithQueue to hand this
// constructor an already-recovered queue; New itself is for the common
// case of a fresh store directory (tests, a first run) where there is
// nothing to recover.
func New(cfg config.Config, storeHost *net.TCPAddr, dispatchSink dispatch.Sink, haSvc ha.Service, m *metrics.Collector, cp *checkpoint.StoreCheckpoint) (*Engine, error) {
	queue, err := NewSegmentQueue(cfg.StorePathCommitLog, segment.Config{
		FileSize: cfg.MappedFileSizeCommitLog,
	}, 32)
	if err != nil {
		return nil, err
	}
	return NewWithQueue(queue, cfg, storeHost, dispatchSink, haSvc, m, cp, nil), nil
}

// NewWithQueue wires an Engine around a queue the caller already opened
// (and, if this store directory has been used before, already ran
// through internal/recovery). Kept separate from New so the recovery
// step — which needs to see the queue before the engine starts
// accepting puts against it — can live in internal/recovery, which
// imports this package, without this package importing it back. cp may be nil, in which case the
// checkpoint is simply never advanced (fine for tests and for a fresh
// store that has nothing to recover from yet). topics may be nil, in
// which case a fresh, empty TopicQueueTable is used (fine for tests and
// a first run); a caller that ran recovery against an existing store
// should pass the table an OffsetRestoringSink populated during that
// scan, so queue offsets stay dense across a restart.
func NewWithQueue(queue *SegmentQueue, cfg config.Config, storeHost *net.TCPAddr, dispatchSink dispatch.Sink, haSvc ha.Service, m *metrics.Collector, cp *checkpoint.StoreCheckpoint, topics *TopicQueueTable) *Engine {
	if dispatchSink == nil {
		dispatchSink = dispatch.NopSink{}
	}
	if haSvc == nil {
		haSvc = ha.NopService{}
	}
	if topics == nil {
		topics = NewTopicQueueTable()
	}

	queue.SetForceAfter(cfg.DestroyMapedFileIntervalForcibly)

	e := &Engine{
		queue:      queue,
		topics:     topics,
		dispatch:   dispatchSink,
		ha:         haSvc,
		metrics:    m,
		cfg:        cfg,
		checkpoint: cp,
		log:        xlog.New("commitlog"),
		storeHost:  storeHost,
		putMu:      newPutLock(cfg.UseReentrantLockWhenPutMessage),
	}

	var flusher flush.Flusher
	if cfg.FlushDiskType == config.SyncFlush {
		flusher = flush.NewSyncGroupFlusher(queue, cp)
	} else {
		flusher = flush.NewAsyncFlusher(queue, cfg.FlushIntervalCommitLog, cfg.FlushCommitLogLeastPages, cfg.FlushCommitLogThoroughInterval, cp)
	}
	flusher.Start()
	e.flusher = flusher

	cleaner := newRetentionCleaner(e)
	cleaner.Start()
	e.cleaner = cleaner

	return e
}

func (e *Engine) Close() error {
	e.cleaner.Stop()
	e.flusher.Stop()

	err := e.queue.Close()
	if e.checkpoint != nil {
		if cerr := e.checkpoint.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Read returns a refcounted view of size bytes starting at
// physicalOffset. Callers must call View.Release. Grounded on
// CommitLog.getMessage(offset, size).
func (e *Engine) Read(physicalOffset int64, size int32) (*segment.View, error) {
	seg, err := e.queue.FindByOffset(physicalOffset)
	if err != nil {
		return nil, err
	}
	return seg.SelectViewSized(int32(physicalOffset-seg.BaseOffset), size)
}

// GetData returns every byte from physicalOffset to its segment's
// current write position (flushed or not), grounded on
// CommitLog.getData(offset, returnFirstOnNotFound). Used by HA catch-up.
func (e *Engine) GetData(physicalOffset int64) (*segment.View, error) {
	seg, err := e.queue.FindByOffset(physicalOffset)
	if err != nil {
		return nil, err
	}
	return seg.SelectView(int32(physicalOffset - seg.BaseOffset))
}

// StoreTimestampAt recovers a record's StoreTimestamp from raw
// offset+size without fully decoding the body, used by delay-queue
// rewrite consumers. Grounded on CommitLog.pickupStoreTimestamp.
func (e *Engine) StoreTimestampAt(physicalOffset int64, size int32) (int64, error) {
	view, err := e.Read(physicalOffset, size)
	if err != nil {
		return 0, err
	}
	defer view.Release()

	res, err := wire.Decode(view.Data, false)
	if err != nil || res.Record == nil {
		return 0, ErrOffsetOutOfRange
	}
	return res.Record.StoreTimestamp, nil
}

// AppendRaw replays pre-framed bytes onto the tail, used by HA slave
// catch-up. Grounded on MappedFile.appendMessage(byte[]) / CommitLog's
// slave-side append path.
func (e *Engine) AppendRaw(data []byte) (int64, error) {
	e.putMu.Lock()
	defer e.putMu.Unlock()

	offset, err := e.queue.Tail().AppendRaw(data)
	if err == segment.ErrEndOfFile {
		nextOffset := e.queue.Tail().BaseOffset + e.queue.Tail().FileSize
		if _, err := e.queue.Roll(nextOffset); err != nil {
			return 0, err
		}
		return e.queue.Tail().AppendRaw(data)
	}
	return offset, err
}

// RemoveQueue drops a topic/queue's offset bookkeeping. Grounded on
// CommitLog.removeQueueFromTopicQueueTable (SPEC_FULL.md §4 item 5).
func (e *Engine) RemoveQueue(topic string, queueId int32) { e.topics.RemoveQueue(topic, queueId) }

// DeleteExpiredSegments sweeps the segment queue for files past their
// retention window. Called periodically by the Engine's own
// RetentionCleaner, and exposed here for a caller that wants to trigger
// a sweep by hand (cmd/duraqd or a future broker front-end).
func (e *Engine) DeleteExpiredSegments(expireAge, minInterval, forceAfter time.Duration, immediate bool) int {
	return e.queue.DeleteExpired(expireAge, minInterval, forceAfter, immediate)
}
