package commitlog

import (
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"duraq/internal/config"
	"duraq/internal/dispatch"
	"duraq/internal/ha"
	"duraq/internal/metrics"
	"duraq/internal/segment"
	"duraq/internal/wire"
)

// PutMessage is the single-writer critical section: validate, reserve
// space and encode under the put-lock, then — outside the lock — hand
// the record off to dispatch and wait on whatever durability/replication
// guarantee the broker's config asked for. Grounded on
// CommitLog.java's putMessage: topic and size validation run before the
// lock is taken, the DefaultAppendMessageCallback.doAppend critical
// section happens with the lock held, and flush/slave waits happen after
// it's released.
func (e *Engine) PutMessage(msg *wire.Message) (PutResult, error) {
	start := time.Now()

	if msg.Topic == "" || len(msg.Topic) > wire.MaxTopicLen {
		return PutResult{Status: MessageIllegal}, nil
	}

	applyDelayRewrite(msg)

	length, err := wire.ComputeLength(msg)
	if err != nil {
		return PutResult{Status: MessageIllegal}, nil
	}
	if length > e.cfg.MaxMessageSize || int64(length)+wire.MinPaddingBytes > e.cfg.MappedFileSizeCommitLog {
		return PutResult{Status: MessageIllegal}, nil
	}

	if msg.StoreHost == nil {
		msg.StoreHost = e.storeHost
	}
	if msg.BornHost == nil {
		msg.BornHost = e.storeHost
	}

	txType := wire.TransactionType(msg.SysFlag)

	lockStart := time.Now()
	e.putMu.Lock()

	// A prepared or rollback record never occupies a slot in the queue's
	// offset sequence — it isn't visible to a consumer yet (prepared) or
	// never will be (rollback) — so it always reads back as offset 0.
	// Everything else reads the offset it will claim now, under the
	// lock, but the table isn't actually advanced until the append below
	// succeeds.
	if txType == wire.SysFlagTransactionPreparedType || txType == wire.SysFlagTransactionRollbackType {
		msg.QueueOffset = 0
	} else {
		msg.QueueOffset = e.topics.CurrentOffset(msg.Topic, msg.QueueId)
	}
	msg.StoreTimestamp = time.Now().UnixMilli()

	result := e.queue.Tail().Append(msg, e.appendCallback)
	if result.Status == segment.AppendEndOfFile {
		nextOffset := e.queue.Tail().BaseOffset + e.queue.Tail().FileSize
		if _, rollErr := e.queue.Roll(nextOffset); rollErr != nil {
			e.observeLockHold(lockStart)
			e.putMu.Unlock()
			return PutResult{Status: CreateSegmentFailed}, rollErr
		}
		result = e.queue.Tail().Append(msg, e.appendCallback)
	}

	if result.Status == segment.AppendOK && (txType == wire.SysFlagTransactionNotType || txType == wire.SysFlagTransactionCommitType) {
		e.topics.Advance(msg.Topic, msg.QueueId)
	}

	e.observeLockHold(lockStart)
	e.putMu.Unlock()

	if result.Status != segment.AppendOK {
		e.log.Printf("[BUG] append failed with status %v after rotation retry, topic=%s queueId=%d", result.Status, msg.Topic, msg.QueueId)
		return PutResult{Status: UnknownError}, nil
	}

	putResult := PutResult{
		Status:         PutOK,
		MessageID:      wire.CreateMessageID(encodeHostOrZero(msg.StoreHost), result.WroteOffset),
		QueueOffset:    msg.QueueOffset,
		PhysicalOffset: result.WroteOffset,
		RecordSize:     result.WroteBytes,
	}

	e.dispatch.Dispatch(dispatch.Request{
		Topic:             msg.Topic,
		QueueId:           msg.QueueId,
		QueueOffset:       msg.QueueOffset,
		PhysicalOffset:    result.WroteOffset,
		RecordSize:        result.WroteBytes,
		Tags:              msg.Properties["TAGS"],
		Keys:              msg.Properties["KEYS"],
		SysFlag:           msg.SysFlag,
		PreparedTxnOffset: msg.PreparedTxnOffset,
		StoreTimestamp:    msg.StoreTimestamp,
	})

	committedTo := result.WroteOffset + int64(result.WroteBytes)

	if e.cfg.FlushDiskType == config.SyncFlush {
		if !e.flusher.WaitFlush(committedTo, e.cfg.SyncFlushTimeout) {
			putResult.Status = FlushDiskTimeout
		}
	}

	if e.cfg.BrokerRole == config.SyncMaster && putResult.Status == PutOK {
		if !e.ha.IsSlaveOK(committedTo) {
			putResult.Status = SlaveNotAvailable
		} else if !ha.WaitFor(e.ha, committedTo, e.cfg.SyncFlushTimeout) {
			putResult.Status = FlushSlaveTimeout
		}
	}

	if e.metrics != nil {
		e.metrics.AppendLatency.Observe(time.Since(start).Seconds())
		e.metrics.PutResultsTotal.WithLabelValues(putResult.Status.String()).Inc()
	}

	return putResult, nil
}

// observeLockHold records how long a single PutMessage held the
// put-lock, and logs a line for any hold exceeding
// metrics.PutLockHoldThresholdSeconds, matching CommitLog's "lock cost
// time(%dms) over 1000ms" warning. The log check runs whether or not
// metrics are configured at all.
func (e *Engine) observeLockHold(lockStart time.Time) {
	held := time.Since(lockStart)
	if held.Seconds() > metrics.PutLockHoldThresholdSeconds {
		e.log.Printf("put-lock held %s, exceeding %.0fs threshold", held, metrics.PutLockHoldThresholdSeconds)
	}
	if e.metrics != nil {
		e.metrics.PutLockHoldTime.Observe(held.Seconds())
	}
}

// appendCallback is the AppendCallback Segment.Append runs under the
// put-lock: pad-and-signal-roll when the record doesn't fit, otherwise
// encode in place. Grounded on DefaultAppendMessageCallback.doAppend.
func (e *Engine) appendCallback(fileFromOffset int64, buf []byte, maxBlank int32, msg *wire.Message) segment.AppendResult {
	length, err := wire.ComputeLength(msg)
	if err != nil {
		return segment.AppendResult{Status: segment.AppendUnknownError, WroteOffset: fileFromOffset}
	}

	if length+wire.MinPaddingBytes > maxBlank {
		if maxBlank >= wire.MinPaddingBytes {
			binary.BigEndian.PutUint32(buf[0:4], uint32(maxBlank))
			binary.BigEndian.PutUint32(buf[4:8], wire.BlankMagic)
		}
		return segment.AppendResult{Status: segment.AppendEndOfFile, WroteOffset: fileFromOffset, WroteBytes: maxBlank}
	}

	msg.PhysicalOffset = fileFromOffset
	n, err := wire.EncodeMessage(buf, msg)
	if err != nil {
		return segment.AppendResult{Status: segment.AppendUnknownError, WroteOffset: fileFromOffset}
	}
	return segment.AppendResult{Status: segment.AppendOK, WroteOffset: fileFromOffset, WroteBytes: int32(n)}
}

// applyDelayRewrite rewrites msg in place onto the schedule topic when
// the caller asked for a delay via the DELAY property, stashing the
// real destination so a scheduler can route it there once the delay
// elapses. Grounded on CommitLog.putMessage's delayLevel handling. A
// transactional-prepared or -rollback record is never itself delivered,
// so it is left untouched; the rewrite applies once a message is either
// non-transactional or has committed.
func applyDelayRewrite(msg *wire.Message) {
	txType := wire.TransactionType(msg.SysFlag)
	if txType != wire.SysFlagTransactionNotType && txType != wire.SysFlagTransactionCommitType {
		return
	}

	raw, ok := msg.Properties[wire.PropertyDelayLevel]
	if !ok {
		return
	}
	level, err := strconv.Atoi(raw)
	if err != nil || level < 1 {
		return
	}
	level32 := wire.ClampDelayLevel(int32(level))

	msg.Properties[wire.PropertyRealTopic] = msg.Topic
	msg.Properties[wire.PropertyRealQueueId] = strconv.Itoa(int(msg.QueueId))

	msg.Topic = wire.ScheduleTopic
	msg.QueueId = wire.DelayLevelToQueueId(level32)
}

func encodeHostOrZero(addr *net.TCPAddr) []byte {
	b, _ := wire.EncodeHostAddr(addr)
	return b
}

// MetricsCollector exposes the engine's metrics bundle, used by a
// process embedding this engine to register an HTTP /metrics handler.
func (e *Engine) MetricsCollector() *metrics.Collector { return e.metrics }
