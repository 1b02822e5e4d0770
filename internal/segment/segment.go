package segment

import (
	"sync/atomic"
	"time"

	"duraq/internal/wire"
)

// destroyPollInterval is how often Destroy re-checks the reference count
// while waiting for outstanding views to drain.
const destroyPollInterval = 10 * time.Millisecond

// pageSize matches the original's hardcoded OS_PAGE_SIZE rather than
// os.Getpagesize(): flush/warmup page-counting must agree with whatever
// unit leastPages was configured against, and that unit is documented in
// terms of 4KB pages regardless of the host's actual page size.
const pageSize = 4096

// AppendStatus classifies the outcome of one Append call.
type AppendStatus int32

const (
	AppendOK AppendStatus = iota
	AppendEndOfFile
	AppendMessageSizeExceeded
	AppendUnknownError
)

// AppendResult is what an AppendCallback hands back to Segment.Append.
type AppendResult struct {
	Status      AppendStatus
	WroteOffset int64
	WroteBytes  int32
}

// AppendCallback encodes msg into buf (a window starting at this
// segment's current write position, with maxBlank bytes remaining before
// the file boundary) and fills in msg's PhysicalOffset before returning;
// QueueOffset and StoreTimestamp are already stamped by the caller
// before Segment.Append runs. It runs while the caller's put-lock
// is held — the callback-during-lock pattern that turns "reserve space,
// encode, advance" into a single critical section.
type AppendCallback func(fileFromOffset int64, buf []byte, maxBlank int32, msg *wire.Message) AppendResult

// Segment owns one fixed-size memory-mapped file. BaseOffset is the
// physical offset of byte zero of this file within the whole log;
// everything else is relative to that.
type Segment struct {
	BaseOffset int64
	FileSize   int64

	mm *mmapFile

	wrotePosition   atomic.Int64
	flushedPosition atomic.Int64
	storeTimestamp  atomic.Int64

	refCount  atomic.Int64
	available atomic.Bool
}

// NewSegment opens or creates the segment file for baseOffset under dir,
// pre-truncated to cfg.FileSize and mmap'd PROT_READ|PROT_WRITE.
func NewSegment(dir string, baseOffset int64, cfg Config) (*Segment, error) {
	mm, existed, err := openMmapFile(FileName(dir, baseOffset), cfg.FileSize)
	if err != nil {
		return nil, err
	}

	s := &Segment{BaseOffset: baseOffset, FileSize: cfg.FileSize, mm: mm}
	s.refCount.Store(1)
	s.available.Store(true)

	// load() treats every reopened segment as fully written; only the
	// recoverer, scanning the handful of segments near the tail, ever
	// narrows this back down via SetWrotePosition.
	if existed {
		s.wrotePosition.Store(cfg.FileSize)
		s.flushedPosition.Store(cfg.FileSize)
	}

	if cfg.WarmOnCreate {
		s.warmup()
	}
	if cfg.LockOnCreate {
		_ = s.mm.mlock()
	}

	return s, nil
}

// WrotePosition is the number of bytes written into this segment so far.
func (s *Segment) WrotePosition() int64 { return s.wrotePosition.Load() }

// FlushedPosition is the number of bytes msync has durably flushed.
func (s *Segment) FlushedPosition() int64 { return s.flushedPosition.Load() }

// StoreTimestamp is the StoreTimestamp of the most recently appended
// record, read through SegmentQueue.StoreTimestamp by the flushers to
// advance the store checkpoint.
func (s *Segment) StoreTimestamp() int64 { return s.storeTimestamp.Load() }

// IsFull reports whether the segment has no room left for another
// record, even the smallest one.
func (s *Segment) IsFull() bool { return s.wrotePosition.Load() >= s.FileSize }

// RemainingBytes is how much room is left before the file boundary.
func (s *Segment) RemainingBytes() int64 { return s.FileSize - s.wrotePosition.Load() }

// Append runs cb over the unwritten tail of the segment. If there is no
// room at all it returns AppendEndOfFile without touching cb — the
// caller is expected to write a blank padding frame itself (it knows the
// record-format constants; Segment doesn't) and then roll to the next
// segment.
func (s *Segment) Append(msg *wire.Message, cb AppendCallback) AppendResult {
	currentPos := s.wrotePosition.Load()
	if currentPos >= s.FileSize {
		return AppendResult{Status: AppendEndOfFile, WroteOffset: s.BaseOffset + currentPos}
	}

	maxBlank := int32(s.FileSize - currentPos)
	result := cb(s.BaseOffset+currentPos, s.mm.data[currentPos:s.FileSize], maxBlank, msg)

	// A callback that hits AppendEndOfFile may still have written a blank
	// padding frame consuming the rest of the file (it knows the record
	// format, Segment doesn't) — advance past it regardless of status so
	// the next Append call on a rolled-to segment starts clean.
	if result.WroteBytes > 0 {
		s.wrotePosition.Add(int64(result.WroteBytes))
	}
	if result.Status == AppendOK {
		s.storeTimestamp.Store(msg.StoreTimestamp)
	}
	return result
}

// AppendRaw copies already-framed bytes verbatim, advancing the write
// position without running them through a callback. Used for HA
// catch-up replay, where the bytes arrived pre-encoded from the source.
func (s *Segment) AppendRaw(data []byte) (int64, error) {
	currentPos := s.wrotePosition.Load()
	if currentPos+int64(len(data)) > s.FileSize {
		return 0, ErrEndOfFile
	}
	copy(s.mm.data[currentPos:], data)
	s.wrotePosition.Add(int64(len(data)))
	return s.BaseOffset + currentPos, nil
}

// SelectView returns a refcounted window over [pos, wrotePosition). The
// caller must call View.Release exactly once.
func (s *Segment) SelectView(pos int32) (*View, error) {
	wrote := int32(s.wrotePosition.Load())
	if pos < 0 || pos > wrote {
		return nil, ErrOffsetOutOfRange
	}
	if !s.hold() {
		return nil, ErrAlreadyClosed
	}
	return &View{Data: s.mm.data[pos:wrote], StartOffset: s.BaseOffset + int64(pos), seg: s}, nil
}

// SelectViewSized is SelectView bounded to at most size bytes, used by
// read paths (getMessage) that already know the record length.
func (s *Segment) SelectViewSized(pos, size int32) (*View, error) {
	wrote := int32(s.wrotePosition.Load())
	if pos < 0 || pos > wrote {
		return nil, ErrOffsetOutOfRange
	}
	end := pos + size
	if end > wrote {
		end = wrote
	}
	if !s.hold() {
		return nil, ErrAlreadyClosed
	}
	return &View{Data: s.mm.data[pos:end], StartOffset: s.BaseOffset + int64(pos), seg: s}, nil
}

// Flush msyncs the mapping to disk when the dirty region has grown to at
// least leastPages pages, or unconditionally when leastPages<=0, or when
// the segment is completely full (a full segment never gets another
// chance to accumulate more dirty pages, so it flushes regardless).
// Returns the resulting flushed position.
func (s *Segment) Flush(leastPages int32) int64 {
	if s.isAbleToFlush(leastPages) {
		wrote := s.wrotePosition.Load()
		_ = s.mm.msync()
		s.flushedPosition.Store(wrote)
	}
	return s.flushedPosition.Load()
}

func (s *Segment) isAbleToFlush(leastPages int32) bool {
	flushed := s.flushedPosition.Load()
	wrote := s.wrotePosition.Load()

	if s.IsFull() {
		return wrote > flushed
	}
	if leastPages > 0 {
		return (wrote/pageSize - flushed/pageSize) >= int64(leastPages)
	}
	return wrote > flushed
}

// hold takes a reference, failing once the segment has been marked
// unavailable by Destroy.
func (s *Segment) hold() bool {
	if !s.available.Load() {
		return false
	}
	s.refCount.Add(1)
	return true
}

func (s *Segment) release() {
	if s.refCount.Add(-1) <= 0 {
		_ = s.mm.destroy()
	}
}

// Destroy marks the segment unavailable for new readers, waits up to
// forceAfter for outstanding views to Release, then forces through
// regardless of whether any are still attached — a slow reader does not
// get to keep a segment queue wants gone on disk forever. Unmap occurs
// only once the Segment is both unavailable and its reference count has
// reached zero, which this method drives to completion itself rather
// than leaving it to a future Release call.
//
// With forceAfter<=0 the wait is skipped entirely: Destroy proceeds
// immediately if nothing else holds a reference, or returns
// ErrStillReferenced without touching the file if something does; the
// last outstanding View.Release then unmaps and deletes it. Each call
// drops one reference, so calling Destroy again does not wait for
// outstanding Views.
func (s *Segment) Destroy(forceAfter time.Duration) error {
	s.available.Store(false)

	if forceAfter > 0 {
		deadline := time.Now().Add(forceAfter)
		for s.refCount.Load() > 1 && time.Now().Before(deadline) {
			time.Sleep(destroyPollInterval)
		}
		// Past the deadline, force every outstanding reference off: the
		// file is going away regardless of who still thinks they're
		// holding it open.
		s.refCount.Store(1)
	}

	if s.refCount.Add(-1) <= 0 {
		return s.mm.destroy()
	}
	return ErrStillReferenced
}

// Close flushes and unmaps the segment without deleting it or altering
// its on-disk size.
func (s *Segment) Close() error {
	return s.mm.close()
}

// SetWrotePosition forcibly sets the write position, used by recovery
// once a scan has determined the true end of valid data.
func (s *Segment) SetWrotePosition(pos int64) {
	s.wrotePosition.Store(pos)
	s.flushedPosition.Store(pos)
}

// MadviseWillNeed hints the kernel to prefetch the whole mapping, used
// right after reopening a segment that recovery is about to scan.
func (s *Segment) MadviseWillNeed() error { return s.mm.madviseWillNeed() }
