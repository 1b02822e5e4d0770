package recovery

import (
	"testing"

	"duraq/internal/commitlog"
	"duraq/internal/dispatch"
	"duraq/internal/segment"
	"duraq/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	requests  []dispatch.Request
	truncated int64
	truncCall bool
}

func (s *recordingSink) Dispatch(req dispatch.Request) { s.requests = append(s.requests, req) }
func (s *recordingSink) TruncateAbove(offset int64) {
	s.truncated = offset
	s.truncCall = true
}

func appendTestMessage(t *testing.T, queue *commitlog.SegmentQueue, topic string, body []byte) int64 {
	t.Helper()
	msg := &wire.Message{Topic: topic, Body: body, StoreTimestamp: 1000}

	cb := func(fileFromOffset int64, buf []byte, maxBlank int32, m *wire.Message) segment.AppendResult {
		length, err := wire.ComputeLength(m)
		if err != nil {
			t.Fatalf("ComputeLength: %v", err)
		}
		if length > maxBlank {
			return segment.AppendResult{Status: segment.AppendEndOfFile, WroteOffset: fileFromOffset, WroteBytes: maxBlank}
		}
		m.PhysicalOffset = fileFromOffset
		n, err := wire.EncodeMessage(buf, m)
		if err != nil {
			t.Fatalf("EncodeMessage: %v", err)
		}
		return segment.AppendResult{Status: segment.AppendOK, WroteOffset: fileFromOffset, WroteBytes: int32(n)}
	}

	res := queue.Tail().Append(msg, cb)
	require.Equal(t, segment.AppendOK, res.Status)
	return res.WroteOffset + int64(res.WroteBytes)
}

func TestRecoverNormallyFindsTrueEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := segment.Config{FileSize: 4096}

	queue, err := commitlog.NewSegmentQueue(dir, cfg, 8)
	require.NoError(t, err)

	var lastEnd int64
	for i := 0; i < 3; i++ {
		lastEnd = appendTestMessage(t, queue, "orders", []byte("payload"))
	}
	require.NoError(t, queue.Close())

	reopened, err := commitlog.NewSegmentQueue(dir, cfg, 8)
	require.NoError(t, err)
	defer reopened.Close()

	sink := &recordingSink{}
	rec := New(reopened, sink, true)

	validOffset, err := rec.RecoverNormally()
	require.NoError(t, err)
	assert.Equal(t, lastEnd, validOffset)
	require.Len(t, sink.requests, 3)
	for _, req := range sink.requests {
		assert.Equal(t, "orders", req.Topic)
	}

	assert.Equal(t, lastEnd, reopened.Tail().WrotePosition())
}

func appendTestMessageWithOffset(t *testing.T, queue *commitlog.SegmentQueue, topic string, queueOffset int64, body []byte) int64 {
	t.Helper()
	msg := &wire.Message{Topic: topic, QueueOffset: queueOffset, Body: body, StoreTimestamp: 1000}

	cb := func(fileFromOffset int64, buf []byte, maxBlank int32, m *wire.Message) segment.AppendResult {
		length, err := wire.ComputeLength(m)
		if err != nil {
			t.Fatalf("ComputeLength: %v", err)
		}
		if length > maxBlank {
			return segment.AppendResult{Status: segment.AppendEndOfFile, WroteOffset: fileFromOffset, WroteBytes: maxBlank}
		}
		m.PhysicalOffset = fileFromOffset
		n, err := wire.EncodeMessage(buf, m)
		if err != nil {
			t.Fatalf("EncodeMessage: %v", err)
		}
		return segment.AppendResult{Status: segment.AppendOK, WroteOffset: fileFromOffset, WroteBytes: int32(n)}
	}

	res := queue.Tail().Append(msg, cb)
	require.Equal(t, segment.AppendOK, res.Status)
	return res.WroteOffset + int64(res.WroteBytes)
}

func TestRecoverNormallyRestoresTopicQueueOffsets(t *testing.T) {
	dir := t.TempDir()
	cfg := segment.Config{FileSize: 4096}

	queue, err := commitlog.NewSegmentQueue(dir, cfg, 8)
	require.NoError(t, err)

	for i := int64(0); i < 3; i++ {
		appendTestMessageWithOffset(t, queue, "orders", i, []byte("payload"))
	}
	require.NoError(t, queue.Close())

	reopened, err := commitlog.NewSegmentQueue(dir, cfg, 8)
	require.NoError(t, err)
	defer reopened.Close()

	topics := commitlog.NewTopicQueueTable()
	rec := New(reopened, commitlog.NewOffsetRestoringSink(nil, topics), true)

	_, err = rec.RecoverNormally()
	require.NoError(t, err)

	assert.Equal(t, int64(3), topics.CurrentOffset("orders", 0), "recovery should have fast-forwarded the table to the next offset past the last record it scanned")
}

func TestRecoverAbnormallyTruncatesTornTailAndNotifiesSink(t *testing.T) {
	dir := t.TempDir()
	cfg := segment.Config{FileSize: 4096}

	queue, err := commitlog.NewSegmentQueue(dir, cfg, 8)
	require.NoError(t, err)

	goodEnd := appendTestMessage(t, queue, "orders", []byte("payload"))

	// Simulate a torn write: garbage bytes with no recognizable magic
	// code trailing the last good record.
	garbage := make([]byte, 64)
	for i := range garbage {
		garbage[i] = 0xAB
	}
	_, err = queue.Tail().AppendRaw(garbage)
	require.NoError(t, err)

	require.NoError(t, queue.Close())

	reopened, err := commitlog.NewSegmentQueue(dir, cfg, 8)
	require.NoError(t, err)
	defer reopened.Close()

	sink := &recordingSink{}
	rec := New(reopened, sink, true)

	validOffset, err := rec.RecoverAbnormally(1 << 62)
	require.NoError(t, err)
	assert.Equal(t, goodEnd, validOffset)
	assert.True(t, sink.truncCall, "expected TruncateAbove to be called")
	assert.Equal(t, goodEnd, sink.truncated)
}
