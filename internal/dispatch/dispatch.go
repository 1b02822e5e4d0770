package dispatch

// Request is the one-directional hand-off an appender posts after a
// record is durably positioned in a segment, carrying just enough to let
// a downstream index (consume queue, index file, HA) build its own view
// without re-reading the record body.
type Request struct {
	Topic          string
	QueueId        int32
	QueueOffset    int64
	PhysicalOffset int64
	RecordSize     int32
	Tags           string
	Keys           string

	// SysFlag and PreparedTxnOffset carry the record's transaction type
	// through to dispatch, so a downstream index can tell a prepared
	// message apart from one that's ready to be consumed.
	SysFlag           int32
	PreparedTxnOffset int64

	StoreTimestamp int64
}

// Sink receives dispatch requests. It must not block the caller for
// long — the appender calls Dispatch outside the put-lock but still on
// the hot append path, so a slow sink throttles throughput.
type Sink interface {
	Dispatch(req Request)

	// TruncateAbove discards any index data built from records beyond
	// physicalOffset. Called once by abnormal recovery after it has
	// determined the true committed end of the log, so a downstream
	// index never points past what the commit log actually kept.
	TruncateAbove(physicalOffset int64)
}

// NopSink discards every request. Useful as the default when nothing
// downstream of the commit log needs a hand-off yet.
type NopSink struct{}

func (NopSink) Dispatch(Request)         {}
func (NopSink) TruncateAbove(int64)       {}

// ChannelSink hands requests off to a buffered channel, decoupling the
// appender from whatever consumes the channel (an index-building
// goroutine). Dispatch drops the request rather than blocking once the
// channel is full, the same fail-open choice the original gives the
// reput service vs. an over-eager producer.
type ChannelSink struct {
	ch chan Request
}

// NewChannelSink creates a sink backed by a channel of the given
// capacity.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan Request, capacity)}
}

func (s *ChannelSink) Dispatch(req Request) {
	select {
	case s.ch <- req:
	default:
	}
}

// TruncateAbove is a no-op here: a ChannelSink has already hand the
// request off by the time recovery could call this, and whatever
// consumes the channel is responsible for its own truncation.
func (s *ChannelSink) TruncateAbove(int64) {}

// Requests exposes the channel for a consumer goroutine to range over.
func (s *ChannelSink) Requests() <-chan Request { return s.ch }
