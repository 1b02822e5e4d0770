package commitlog

import (
	"duraq/internal/dispatch"
	"duraq/internal/wire"
)

// OffsetRestoringSink wraps a dispatch.Sink so that, while it's used as
// recovery's sink, every scanned record also fast-forwards a
// TopicQueueTable to match what was actually persisted — without it, a
// freshly constructed Engine always starts its TopicQueueTable empty,
// silently resetting every (topic, queueId) counter to 0 across a
// restart. Only a not/commit record actually advances a counter: a
// prepared or rollback record is dispatched with QueueOffset 0 (see
// applyDelayRewrite's sibling logic in PutMessage) and replaying it must
// not roll an already-advanced counter back down to 0.
type OffsetRestoringSink struct {
	next   dispatch.Sink
	topics *TopicQueueTable
}

// NewOffsetRestoringSink wraps next with one that also restores topics
// as it sees each record. next may be nil, defaulting to dispatch.NopSink.
func NewOffsetRestoringSink(next dispatch.Sink, topics *TopicQueueTable) *OffsetRestoringSink {
	if next == nil {
		next = dispatch.NopSink{}
	}
	return &OffsetRestoringSink{next: next, topics: topics}
}

func (s *OffsetRestoringSink) Dispatch(req dispatch.Request) {
	txType := wire.TransactionType(req.SysFlag)
	if txType == wire.SysFlagTransactionNotType || txType == wire.SysFlagTransactionCommitType {
		s.topics.SetOffset(req.Topic, req.QueueId, req.QueueOffset+1)
	}
	s.next.Dispatch(req)
}

func (s *OffsetRestoringSink) TruncateAbove(physicalOffset int64) {
	s.next.TruncateAbove(physicalOffset)
}
