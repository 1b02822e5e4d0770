package commitlog

import (
	"testing"
	"time"

	"duraq/internal/config"
	"duraq/internal/dispatch"
	"duraq/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, fileSize int64) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.StorePathCommitLog = t.TempDir()
	cfg.MappedFileSizeCommitLog = fileSize
	cfg.MaxMessageSize = 4096
	return cfg
}

func newTestEngine(t *testing.T, fileSize int64) *Engine {
	t.Helper()
	cfg := testConfig(t, fileSize)
	engine, err := New(cfg, nil, dispatch.NopSink{}, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestPutMessageAssignsDenseQueueOffsets(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	for i := int64(0); i < 3; i++ {
		result, err := engine.PutMessage(&wire.Message{Topic: "orders", QueueId: 0, Body: []byte("payload")})
		require.NoError(t, err)
		require.Equal(t, PutOK, result.Status)
		assert.Equal(t, i, result.QueueOffset)
	}
}

func TestPutMessageRollsSegmentOnEndOfFile(t *testing.T) {
	engine := newTestEngine(t, 256)

	var lastPhysical int64
	for i := 0; i < 6; i++ {
		result, err := engine.PutMessage(&wire.Message{Topic: "orders", Body: []byte("0123456789")})
		require.NoError(t, err)
		require.Equal(t, PutOK, result.Status)
		assert.GreaterOrEqual(t, result.PhysicalOffset, lastPhysical)
		lastPhysical = result.PhysicalOffset
	}

	assert.Greater(t, len(engine.queue.BaseOffsets()), 1, "expected at least one roll across 6 small messages in a 256-byte segment")
}

func TestPutMessageRejectsOversizedMessage(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	result, err := engine.PutMessage(&wire.Message{Topic: "orders", Body: make([]byte, 8192)})
	require.NoError(t, err)
	assert.Equal(t, MessageIllegal, result.Status)
}

func TestPutMessageRejectsEmptyTopic(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	result, err := engine.PutMessage(&wire.Message{Body: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, MessageIllegal, result.Status)
}

func TestPutMessageTransactionalPreparedDoesNotAdvanceQueueOffset(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	prepared, err := engine.PutMessage(&wire.Message{
		Topic:   "orders",
		QueueId: 0,
		SysFlag: wire.SysFlagTransactionPreparedType,
		Body:    []byte("half-done"),
	})
	require.NoError(t, err)
	require.Equal(t, PutOK, prepared.Status)
	assert.Equal(t, int64(0), prepared.QueueOffset)

	normal, err := engine.PutMessage(&wire.Message{Topic: "orders", QueueId: 0, Body: []byte("payload")})
	require.NoError(t, err)
	require.Equal(t, PutOK, normal.Status)
	assert.Equal(t, int64(0), normal.QueueOffset, "a prepared record must not have claimed a slot in the queue's offset sequence")
}

func TestPutMessageRollbackDoesNotAdvanceQueueOffset(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	rollback, err := engine.PutMessage(&wire.Message{
		Topic:   "orders",
		SysFlag: wire.SysFlagTransactionRollbackType,
		Body:    []byte("never happened"),
	})
	require.NoError(t, err)
	require.Equal(t, PutOK, rollback.Status)
	assert.Equal(t, int64(0), rollback.QueueOffset)

	assert.Equal(t, int64(0), engine.topics.CurrentOffset("orders", 0))
}

func TestPutMessageCommitAdvancesQueueOffset(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	commit, err := engine.PutMessage(&wire.Message{
		Topic:   "orders",
		SysFlag: wire.SysFlagTransactionCommitType,
		Body:    []byte("now visible"),
	})
	require.NoError(t, err)
	require.Equal(t, PutOK, commit.Status)
	assert.Equal(t, int64(0), commit.QueueOffset)
	assert.Equal(t, int64(1), engine.topics.CurrentOffset("orders", 0))
}

func TestPutMessageDelayRewriteToScheduleTopic(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	msg := &wire.Message{
		Topic:      "orders",
		QueueId:    3,
		Body:       []byte("delayed"),
		Properties: map[string]string{wire.PropertyDelayLevel: "2"},
	}
	result, err := engine.PutMessage(msg)
	require.NoError(t, err)
	require.Equal(t, PutOK, result.Status)

	assert.Equal(t, wire.ScheduleTopic, msg.Topic)
	assert.Equal(t, wire.DelayLevelToQueueId(2), msg.QueueId)
	assert.Equal(t, "orders", msg.Properties[wire.PropertyRealTopic])
	assert.Equal(t, "3", msg.Properties[wire.PropertyRealQueueId])
}

func TestPutMessageDelayLevelClamped(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	msg := &wire.Message{
		Topic:      "orders",
		Body:       []byte("way too delayed"),
		Properties: map[string]string{wire.PropertyDelayLevel: "999"},
	}
	_, err := engine.PutMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, wire.DelayLevelToQueueId(wire.MaxDelayLevel), msg.QueueId)
}

func TestPutMessageSlaveNotAvailable(t *testing.T) {
	cfg := testConfig(t, 1024*1024)
	cfg.BrokerRole = config.SyncMaster
	engine, err := New(cfg, nil, dispatch.NopSink{}, unavailableHA{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	result, err := engine.PutMessage(&wire.Message{Topic: "orders", Body: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, SlaveNotAvailable, result.Status)
}

// unavailableHA reports no slave ever caught up, exercising the
// SlaveNotAvailable path without needing a real replication transport.
type unavailableHA struct{}

func (unavailableHA) IsSlaveOK(int64) bool { return false }
func (unavailableHA) PushToSlave(int64)    {}

func TestDeleteExpiredSegmentsSkipsTail(t *testing.T) {
	engine := newTestEngine(t, 256)

	for i := 0; i < 6; i++ {
		_, err := engine.PutMessage(&wire.Message{Topic: "orders", Body: []byte("0123456789")})
		require.NoError(t, err)
	}
	require.Greater(t, len(engine.queue.BaseOffsets()), 1)

	deleted := engine.DeleteExpiredSegments(0, 0, 0, true)
	assert.GreaterOrEqual(t, deleted, 1)

	baseOffsets := engine.queue.BaseOffsets()
	require.NotEmpty(t, baseOffsets)
	assert.Equal(t, engine.queue.Tail().BaseOffset, baseOffsets[len(baseOffsets)-1])
}

func TestTruncateDirtyFilesDropsSegmentsPastValidOffset(t *testing.T) {
	engine := newTestEngine(t, 256)

	var offsets []int64
	for i := 0; i < 6; i++ {
		result, err := engine.PutMessage(&wire.Message{Topic: "orders", Body: []byte("0123456789")})
		require.NoError(t, err)
		offsets = append(offsets, result.PhysicalOffset)
	}
	require.Greater(t, len(engine.queue.BaseOffsets()), 1)

	validOffset := offsets[2]
	require.NoError(t, engine.queue.TruncateDirtyFiles(validOffset))

	for _, off := range engine.queue.BaseOffsets() {
		assert.LessOrEqual(t, off, validOffset)
	}
	assert.Equal(t, validOffset-engine.queue.Tail().BaseOffset, engine.queue.Tail().WrotePosition())
}

func TestAppendRawReplaysFrame(t *testing.T) {
	src := newTestEngine(t, 1024*1024)
	result, err := src.PutMessage(&wire.Message{Topic: "orders", Body: []byte("replicated")})
	require.NoError(t, err)

	view, err := src.Read(result.PhysicalOffset, result.RecordSize)
	require.NoError(t, err)
	frame := make([]byte, len(view.Data))
	copy(frame, view.Data)
	view.Release()

	dst := newTestEngine(t, 1024*1024)
	offset, err := dst.AppendRaw(frame)
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)

	replayed, err := dst.Read(offset, result.RecordSize)
	require.NoError(t, err)
	defer replayed.Release()
	assert.Equal(t, frame, replayed.Data)
}

func TestPutMessageConcurrentPutsStayDense(t *testing.T) {
	engine := newTestEngine(t, 1024*1024)

	const n = 50
	done := make(chan PutResult, n)
	for i := 0; i < n; i++ {
		go func() {
			result, err := engine.PutMessage(&wire.Message{Topic: "orders", Body: []byte("x")})
			require.NoError(t, err)
			done <- result
		}()
	}

	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		select {
		case result := <-done:
			require.Equal(t, PutOK, result.Status)
			assert.False(t, seen[result.QueueOffset], "queue offset %d claimed twice", result.QueueOffset)
			seen[result.QueueOffset] = true
		case <-time.After(5 * time.Second):
			t.Fatal("put did not complete in time")
		}
	}
	assert.Equal(t, int64(n), engine.topics.CurrentOffset("orders", 0))
}
