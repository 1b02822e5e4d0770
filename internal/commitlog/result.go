package commitlog

// PutStatus is a closed enum of every way PutMessage can conclude. It is
// a value, not an error — a MessageIllegal result is a normal, expected
// return for a caller that sent a bad record, not a failure of the
// engine itself.
type PutStatus int

const (
	PutOK PutStatus = iota
	FlushDiskTimeout
	FlushSlaveTimeout
	SlaveNotAvailable
	MessageIllegal
	CreateSegmentFailed
	UnknownError
)

func (s PutStatus) String() string {
	switch s {
	case PutOK:
		return "PUT_OK"
	case FlushDiskTimeout:
		return "FLUSH_DISK_TIMEOUT"
	case FlushSlaveTimeout:
		return "FLUSH_SLAVE_TIMEOUT"
	case SlaveNotAvailable:
		return "SLAVE_NOT_AVAILABLE"
	case MessageIllegal:
		return "MESSAGE_ILLEGAL"
	case CreateSegmentFailed:
		return "CREATE_SEGMENT_FAILED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// PutResult is what PutMessage returns: the outcome plus everything a
// caller needs to locate the record it just wrote.
type PutResult struct {
	Status         PutStatus
	MessageID      string
	QueueOffset    int64
	PhysicalOffset int64
	RecordSize     int32
}

// IsOK reports whether the put fully succeeded. Timeouts still mean the
// record was appended to local storage; only the durability/replication
// guarantee the caller asked for wasn't met in time.
func (r PutResult) IsOK() bool { return r.Status == PutOK }
