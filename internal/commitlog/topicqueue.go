package commitlog

import "sync"

type topicQueueKey struct {
	Topic   string
	QueueId int32
}

// TopicQueueTable hands out the next logical queue offset for a
// (topic, queueId) pair, and tracks the largest offset assigned so far.
// It holds no storage of its own — offsets here are the consume-queue
// style sequence numbers a topic's queue sees, independent of the
// physical byte offsets the underlying segments use.
type TopicQueueTable struct {
	mu     sync.Mutex
	tables map[topicQueueKey]int64
}

func NewTopicQueueTable() *TopicQueueTable {
	return &TopicQueueTable{tables: make(map[topicQueueKey]int64)}
}

// CurrentOffset returns the queue offset that would be assigned next for
// (topic, queueId) without advancing the counter. The appender reads
// this once under the put-lock to stamp a record's QueueOffset, then
// only calls Advance once the append has actually succeeded — a
// transactional-prepared or -rollback record reads nothing here at all,
// since it never occupies a slot in the queue's offset sequence.
func (t *TopicQueueTable) CurrentOffset(topic string, queueId int32) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tables[topicQueueKey{topic, queueId}]
}

// Advance commits the offset CurrentOffset last handed out for
// (topic, queueId). Call this only after a successful append of a
// transactional-not or transactional-commit record.
func (t *TopicQueueTable) Advance(topic string, queueId int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tables[topicQueueKey{topic, queueId}]++
}

// SetOffset forcibly sets a queue's counter, used when recovery replays
// a dispatch request and needs to fast-forward the table to match what
// was actually persisted.
func (t *TopicQueueTable) SetOffset(topic string, queueId int32, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tables[topicQueueKey{topic, queueId}] = offset
}

// RemoveQueue drops the bookkeeping for (topic, queueId) entirely,
// mirroring the original's removeQueueFromTopicQueueTable admin op.
func (t *TopicQueueTable) RemoveQueue(topic string, queueId int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tables, topicQueueKey{topic, queueId})
}

// RemoveTopic drops every queue registered under topic.
func (t *TopicQueueTable) RemoveTopic(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.tables {
		if k.Topic == topic {
			delete(t.tables, k)
		}
	}
}
