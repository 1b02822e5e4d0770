package commitlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"duraq/internal/segment"
)

// SegmentQueue owns the ordered list of segment files that make up one
// physical commit log: every segment but the last is read-only and may
// be evicted from memory by the LRU cache; the last (tail) is always
// open for writes.
type SegmentQueue struct {
	mu   sync.RWMutex
	dir  string
	cfg  segment.Config
	cache *segmentCache

	// baseOffsets is the ascending list of every segment's BaseOffset,
	// including the tail's. Segments themselves are opened lazily
	// except for the tail, which NewSegmentQueue always loads directly.
	baseOffsets []int64
	tail        *segment.Segment

	// committedWhere is the queue-level flush cursor: the physical
	// offset flushing has reached across the whole queue, not just the
	// tail. A rotation can outpace flushing, leaving committedWhere
	// inside a segment that is no longer the tail; Flush locates and
	// flushes that segment specifically and only then advances the
	// cursor, rather than always flushing whatever the tail happens to
	// be right now.
	committedWhere int64

	// forceAfter bounds how long TruncateDirtyFiles waits for a
	// discarded segment's outstanding views to drain before forcing it
	// closed anyway. Zero by default; set via SetForceAfter.
	forceAfter time.Duration
}

// NewSegmentQueue scans dir for existing segment files and opens the
// last one as the tail, creating a fresh base-offset-0 segment if the
// directory is empty.
func NewSegmentQueue(dir string, cfg segment.Config, cacheCapacity int) (*SegmentQueue, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	q := &SegmentQueue{dir: dir, cfg: cfg, cache: newSegmentCache(cacheCapacity)}
	if err := q.scan(); err != nil {
		return nil, err
	}

	var tailOffset int64
	if len(q.baseOffsets) == 0 {
		q.baseOffsets = []int64{0}
		tailOffset = 0
	} else {
		tailOffset = q.baseOffsets[len(q.baseOffsets)-1]
	}

	tail, err := segment.NewSegment(q.dir, tailOffset, q.cfg)
	if err != nil {
		return nil, err
	}
	q.tail = tail
	return q, nil
}

func (q *SegmentQueue) scan() error {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		offset, err := strconv.ParseInt(filepath.Base(e.Name()), 10, 64)
		if err != nil {
			continue
		}
		q.baseOffsets = append(q.baseOffsets, offset)
	}
	sort.Slice(q.baseOffsets, func(i, j int) bool { return q.baseOffsets[i] < q.baseOffsets[j] })
	return nil
}

// Tail returns the currently active (writable) segment.
func (q *SegmentQueue) Tail() *segment.Segment {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.tail
}

// Roll opens a new segment starting at nextOffset and swaps it in as the
// tail. The old tail is never closed here: Append only ever calls Roll
// once a segment is completely full (padded to FileSize), so the old
// tail's durability work — msync and eventual unmap — is handed to the
// ordinary Flush/committedWhere path (which keeps flushing it by object
// identity until it catches up) and to the segment cache's own
// eviction, which closes whatever it evicts in the background rather
// than on the caller's stack (see segmentCache.evictOldest). Stashing
// the exact in-memory Segment rather than letting a later lookup reopen
// the file fresh also matters for correctness, not just latency: a
// freshly reopened full-size file would report itself as already
// flushed without ever having been msynced. Roll itself stays cheap —
// opening the new file and swapping two pointers — so it never turns
// into a blocking full-file fsync inside the put-lock.
func (q *SegmentQueue) Roll(nextOffset int64) (*segment.Segment, error) {
	newSeg, err := segment.NewSegment(q.dir, nextOffset, q.cfg)
	if err != nil {
		return nil, fmt.Errorf("commitlog: roll to offset %d: %w", nextOffset, err)
	}

	q.mu.Lock()
	old := q.tail
	q.baseOffsets = append(q.baseOffsets, nextOffset)
	q.tail = newSeg
	q.mu.Unlock()

	q.cache.put(old.BaseOffset, old)
	return newSeg, nil
}

// FindByOffset locates the segment containing physicalOffset: the tail
// if the offset is within it, otherwise the cached or freshly opened
// historical segment whose BaseOffset is the largest one <= offset.
func (q *SegmentQueue) FindByOffset(physicalOffset int64) (*segment.Segment, error) {
	q.mu.RLock()
	tail := q.tail
	baseOffsets := q.baseOffsets
	q.mu.RUnlock()

	if physicalOffset >= tail.BaseOffset {
		return tail, nil
	}
	if len(baseOffsets) == 0 || physicalOffset < baseOffsets[0] {
		return nil, ErrOffsetOutOfRange
	}

	idx := sort.Search(len(baseOffsets), func(i int) bool { return baseOffsets[i] > physicalOffset }) - 1
	if idx < 0 {
		idx = 0
	}
	target := baseOffsets[idx]

	if seg := q.cache.get(target); seg != nil {
		return seg, nil
	}

	seg, err := segment.NewSegment(q.dir, target, q.cfg)
	if err != nil {
		return nil, err
	}
	q.cache.put(target, seg)
	return seg, nil
}

// BaseOffsets returns every segment's BaseOffset in ascending order,
// including the tail's. Used by recovery to decide where to start its
// forward scan without reaching into queue internals.
func (q *SegmentQueue) BaseOffsets() []int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]int64, len(q.baseOffsets))
	copy(out, q.baseOffsets)
	return out
}

// SetForceAfter sets how long TruncateDirtyFiles waits for a discarded
// segment's outstanding views to drain before forcing it closed
// regardless, matching destroyMapedFileIntervalForcibly.
func (q *SegmentQueue) SetForceAfter(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.forceAfter = d
}

// Dir is the directory this queue's segment files live in.
func (q *SegmentQueue) Dir() string { return q.dir }

// SegmentConfig is the segment.Config every segment in this queue was
// opened with.
func (q *SegmentQueue) SegmentConfig() segment.Config { return q.cfg }

// OpenSegment returns the segment starting at baseOffset, whether that's
// the tail, a cached historical segment, or one opened fresh. Grounded on
// the lookup half of FindByOffset, factored out so recovery can walk
// segments by BaseOffset rather than by a physical offset it contains.
func (q *SegmentQueue) OpenSegment(baseOffset int64) (*segment.Segment, error) {
	q.mu.RLock()
	tail := q.tail
	q.mu.RUnlock()

	if baseOffset == tail.BaseOffset {
		return tail, nil
	}
	if seg := q.cache.get(baseOffset); seg != nil {
		return seg, nil
	}
	seg, err := segment.NewSegment(q.dir, baseOffset, q.cfg)
	if err != nil {
		return nil, err
	}
	q.cache.put(baseOffset, seg)
	return seg, nil
}

// SetTailWrotePosition forcibly corrects the tail's write/flush cursor
// without dropping or truncating any segment. Both recovery modes go
// through TruncateDirtyFiles instead, which also sets the tail's cursor.
func (q *SegmentQueue) SetTailWrotePosition(pos int64) {
	q.mu.RLock()
	tail := q.tail
	q.mu.RUnlock()
	tail.SetWrotePosition(pos)
}

// Flush flushes the segment containing committedWhere with the given
// leastPages threshold, advances committedWhere to that segment's new
// flushed position, and returns the result. A rotation may have left
// committedWhere behind the tail; this keeps flushing the segment it
// actually points at — tail or not — rather than unconditionally
// flushing whatever segment is newest, so a queue with flushing lagging
// behind writing still catches every byte up in offset order.
func (q *SegmentQueue) Flush(leastPages int32) int64 {
	q.mu.RLock()
	where := q.committedWhere
	q.mu.RUnlock()

	seg, err := q.FindByOffset(where)
	if err != nil {
		// committedWhere points before the oldest segment still on disk
		// (retention deleted segments flushing had not reached): skip
		// ahead to that segment so the next call flushes it.
		q.mu.Lock()
		defer q.mu.Unlock()
		if len(q.baseOffsets) > 0 && q.committedWhere < q.baseOffsets[0] {
			q.committedWhere = q.baseOffsets[0]
		}
		return q.committedWhere
	}

	newPos := seg.Flush(leastPages)
	newWhere := seg.BaseOffset + newPos

	q.mu.Lock()
	defer q.mu.Unlock()
	if newWhere > q.committedWhere {
		q.committedWhere = newWhere
	}
	return q.committedWhere
}

// FlushedPosition is the physical offset flushing has reached so far,
// satisfying flush.Target without that package importing commitlog.
func (q *SegmentQueue) FlushedPosition() int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.committedWhere
}

// StoreTimestamp is the StoreTimestamp of the most recently appended
// record in the tail segment, satisfying flush.Target so a flusher can
// advance the on-disk checkpoint after each flush batch.
func (q *SegmentQueue) StoreTimestamp() int64 {
	return q.Tail().StoreTimestamp()
}

// TruncateDirtyFiles drops every segment whose BaseOffset is past
// validOffset and truncates the one segment straddling it, used by both
// normal and abnormal recovery once a scan has found the true end of
// valid data.
// Every dropped segment goes through Segment.Destroy rather than a bare
// file removal, so a segment some other goroutine still holds a View
// into is not unmapped out from under it.
func (q *SegmentQueue) TruncateDirtyFiles(validOffset int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var kept []int64
	for _, off := range q.baseOffsets {
		if off <= validOffset {
			kept = append(kept, off)
			continue
		}
		if off == q.tail.BaseOffset {
			continue // destroyed below, once the new tail is in place
		}
		seg, err := q.takeOrOpen(off)
		if err != nil {
			return err
		}
		if err := seg.Destroy(q.forceAfter); err != nil {
			return err
		}
	}
	q.baseOffsets = kept

	tailOffset := kept[len(kept)-1]
	if q.tail.BaseOffset != tailOffset {
		oldTail := q.tail
		tail, err := segment.NewSegment(q.dir, tailOffset, q.cfg)
		if err != nil {
			return err
		}
		q.tail = tail
		if err := oldTail.Destroy(q.forceAfter); err != nil {
			return err
		}
	}
	q.tail.SetWrotePosition(validOffset - q.tail.BaseOffset)
	return nil
}

// takeOrOpen returns the cached segment for baseOffset, removing it from
// the cache, or opens it fresh if nothing was cached. Either way the
// caller now owns the only reference to it and is free to Destroy it.
func (q *SegmentQueue) takeOrOpen(baseOffset int64) (*segment.Segment, error) {
	if seg := q.cache.take(baseOffset); seg != nil {
		return seg, nil
	}
	return segment.NewSegment(q.dir, baseOffset, q.cfg)
}

// DeleteExpired removes the oldest segments whose last-modified time is
// older than expireAge, throttled to at most one deletion per
// minInterval unless immediate is set, forcing a slow reader off a
// segment past forceAfter rather than leaving it mapped forever. It
// never deletes the tail. Returns the number of segments deleted.
//
// The queue lock is held only long enough to pick the next candidate
// and update baseOffsets; Destroy and the throttling sleep both run
// outside it, so a routine expiry sweep never stalls concurrent puts or
// reads for the duration of either.
func (q *SegmentQueue) DeleteExpired(expireAge, minInterval, forceAfter time.Duration, immediate bool) int {
	deleted := 0
	for {
		seg, ok := q.nextExpiredSegment(expireAge)
		if !ok {
			break
		}

		if err := seg.Destroy(forceAfter); err != nil {
			break
		}
		deleted++

		if !immediate && minInterval > 0 {
			time.Sleep(minInterval)
		}
	}
	return deleted
}

// nextExpiredSegment pops the oldest non-tail segment off baseOffsets
// and returns it if it's past expireAge, or ok=false if there is nothing
// eligible to delete right now.
func (q *SegmentQueue) nextExpiredSegment(expireAge time.Duration) (*segment.Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.baseOffsets) <= 1 {
		return nil, false
	}
	oldest := q.baseOffsets[0]
	if oldest == q.tail.BaseOffset {
		return nil, false
	}

	fi, err := os.Stat(segment.FileName(q.dir, oldest))
	if err != nil || time.Since(fi.ModTime()) < expireAge {
		return nil, false
	}

	seg, err := q.takeOrOpen(oldest)
	if err != nil {
		return nil, false
	}
	q.baseOffsets = q.baseOffsets[1:]
	return seg, true
}

// Close flushes and closes the tail and every cached segment.
func (q *SegmentQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cache.closeAll()
	return q.tail.Close()
}
