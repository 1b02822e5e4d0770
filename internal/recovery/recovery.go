package recovery

import (
	"duraq/internal/commitlog"
	"duraq/internal/dispatch"
	"duraq/internal/wire"
)

// Recoverer runs the single-threaded startup scan that establishes the
// true committed end of a commit log before any put is accepted.
// Grounded on CommitLog.java's recoverNormally/recoverAbnormally.
type Recoverer struct {
	queue *commitlog.SegmentQueue
	sink  dispatch.Sink

	checkCRC bool
}

// New builds a Recoverer over queue, dispatching every valid record it
// walks past to sink (defaulting to a no-op sink) and checking CRCs
// during the scan when checkCRC is set.
func New(queue *commitlog.SegmentQueue, sink dispatch.Sink, checkCRC bool) *Recoverer {
	if sink == nil {
		sink = dispatch.NopSink{}
	}
	return &Recoverer{queue: queue, sink: sink, checkCRC: checkCRC}
}

// RecoverNormally handles the clean-shutdown case: rather than trust the
// whole log, it still rescans the last few segments, since a clean
// process exit says nothing about whether the final flush batch actually
// reached disk. Starting at max(0, N-3) caps worst-case recovery IO at
// three segments regardless of log size.
func (r *Recoverer) RecoverNormally() (int64, error) {
	offsets := r.queue.BaseOffsets()
	if len(offsets) == 0 {
		return 0, nil
	}

	startIdx := len(offsets) - 3
	if startIdx < 0 {
		startIdx = 0
	}

	validOffset, err := r.scanFrom(offsets[startIdx])
	if err != nil {
		return 0, err
	}
	if err := r.queue.TruncateDirtyFiles(validOffset); err != nil {
		return 0, err
	}
	return validOffset, nil
}

// RecoverAbnormally handles the unclean-shutdown case: no shutdown
// marker means any segment could be torn, so recovery first has to find
// a trustworthy starting point — the latest segment whose first record
// looks valid and predates minTimestamp (the checkpoint's last known
// durable timestamp) — before it can forward-scan. Every valid record it
// walks past is (re-)dispatched, since whatever downstream index was
// built from those records may itself be stale or missing after an
// unclean exit. Once the true end is found, the sink is told to drop
// anything it built past that point.
func (r *Recoverer) RecoverAbnormally(minTimestamp int64) (int64, error) {
	startBase, err := r.locateTrustworthyStart(minTimestamp)
	if err != nil {
		return 0, err
	}

	validOffset, err := r.scanFrom(startBase)
	if err != nil {
		return 0, err
	}
	if err := r.queue.TruncateDirtyFiles(validOffset); err != nil {
		return 0, err
	}
	r.sink.TruncateAbove(validOffset)
	return validOffset, nil
}

// locateTrustworthyStart walks segments newest-first and returns the
// BaseOffset of the first one whose leading record has a recognizable
// magic code and a StoreTimestamp no later than minTimestamp. Falling
// off the front of the list (nothing matched) means no segment's leading
// record is at or before the checkpoint, so it starts from the very
// first segment.
func (r *Recoverer) locateTrustworthyStart(minTimestamp int64) (int64, error) {
	offsets := r.queue.BaseOffsets()
	for i := len(offsets) - 1; i >= 0; i-- {
		base := offsets[i]
		seg, err := r.queue.OpenSegment(base)
		if err != nil {
			return 0, err
		}

		view, err := seg.SelectView(0)
		if err != nil {
			continue
		}
		result, decErr := wire.Decode(view.Data, false)
		view.Release()

		if decErr == nil && result.Record != nil && result.Record.StoreTimestamp <= minTimestamp {
			return base, nil
		}
	}
	if len(offsets) == 0 {
		return 0, nil
	}
	return offsets[0], nil
}

// scanFrom forward-scans every record from startBase to the first blank
// marker or unparsable frame, dispatching each valid one along the way,
// and returns the physical offset recovery now trusts as the committed
// end of the log. Grounded on checkMessageAndReturnSize's three-way
// classification: a positive size advances the cursor and dispatches; a
// zero size is the end-of-segment padding frame, so the scan moves to
// the next segment; a negative size is torn data, so the scan stops
// entirely and the cursor it already had stands.
func (r *Recoverer) scanFrom(startBase int64) (int64, error) {
	offsets := r.queue.BaseOffsets()
	startIdx := 0
	for i, off := range offsets {
		if off == startBase {
			startIdx = i
			break
		}
	}

	validOffset := startBase

segments:
	for i := startIdx; i < len(offsets); i++ {
		base := offsets[i]
		seg, err := r.queue.OpenSegment(base)
		if err != nil {
			return validOffset, err
		}
		_ = seg.MadviseWillNeed()

		var pos int32
		for {
			view, err := seg.SelectView(pos)
			if err != nil {
				break
			}
			result, decErr := wire.Decode(view.Data, r.checkCRC)
			view.Release()

			if decErr != nil || result.Size < 0 {
				break segments
			}
			if result.Size == 0 {
				break
			}

			r.sink.Dispatch(dispatch.Request{
				Topic:             result.Record.Topic,
				QueueId:           result.Record.QueueId,
				QueueOffset:       result.Record.QueueOffset,
				PhysicalOffset:    base + int64(pos),
				RecordSize:        result.Size,
				Tags:              result.Record.Properties["TAGS"],
				Keys:              result.Record.Properties["KEYS"],
				SysFlag:           result.Record.SysFlag,
				PreparedTxnOffset: result.Record.PreparedTxnOffset,
				StoreTimestamp:    result.Record.StoreTimestamp,
			})

			pos += result.Size
			validOffset = base + int64(pos)
		}
	}

	return validOffset, nil
}
