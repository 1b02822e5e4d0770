package wire

import "net"

// Message is what a producer hands to the appender. Fields the appender
// itself fills in during the put-lock critical section (QueueOffset,
// PhysicalOffset, StoreTimestamp, StoreHost, BodyCRC) are left zero
// here and overwritten in place once the frame's final position is known.
type Message struct {
	Topic   string
	QueueId int32
	Flag    int32

	// SysFlag carries bit flags, including the transaction type bits.
	// EncodeMessage ORs the BornHost/StoreHost IPv6 width bits into the
	// encoded copy; the caller's SysFlag is left as it was.
	SysFlag int32

	BornTimestamp int64
	BornHost      *net.TCPAddr

	StoreTimestamp int64
	StoreHost      *net.TCPAddr

	ReconsumeTimes    int32
	PreparedTxnOffset int64

	Body       []byte
	Properties map[string]string

	// QueueOffset and PhysicalOffset are assigned by the appender while
	// holding the put-lock; zero until then.
	QueueOffset    int64
	PhysicalOffset int64

	// BodyCRC is computed by EncodeMessage from Body; callers never set it.
	BodyCRC uint32
}

// Record is the result of decoding a frame off disk: a Message plus the
// framing metadata (TotalSize, MagicCode) that only exists on the wire.
// BornHostAddrStr/StoreHostAddrStr are the decoded "ip:port" forms since a
// raw scan has no reason to re-resolve them into *net.TCPAddr.
type Record struct {
	Message
	TotalSize        int32
	MagicCode        uint32
	BornHostAddrStr  string
	StoreHostAddrStr string
}
