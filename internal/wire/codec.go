package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"net"
)

// ComputeLength returns the exact on-disk size of msg once encoded,
// mirroring CommitLog's computeMsgLength: every fixed field plus the
// length-prefixed body/topic/properties tail, with host-address width
// chosen per field.
func ComputeLength(msg *Message) (int32, error) {
	if len(msg.Body) > MaxBodyLen {
		return 0, ErrMessageTooLarge
	}
	if len(msg.Topic) > MaxTopicLen {
		return 0, ErrTopicTooLong
	}
	propsBlob := EncodeProperties(msg.Properties)
	if len(propsBlob) > MaxPropertiesLen {
		return 0, ErrPropertiesTooLong
	}

	bornWidth := addrWidth(msg.BornHost)
	storeWidth := addrWidth(msg.StoreHost)

	total := fixedHeaderSize +
		(bornWidth - 8) + (storeWidth - 8) + // fixedHeaderSize already counts 8+8 for the default width
		4 + len(msg.Body) + // BodyLen + Body
		1 + len(msg.Topic) + // TopicLen + Topic
		2 + len(propsBlob) // PropsLen + Properties

	return int32(total), nil
}

// MaxBodyLen is the largest body this codec will encode without the
// caller first checking against a store-level maxMessageSize; kept
// generous since the engine enforces the real, configurable limit.
const MaxBodyLen = 1<<24 - 1

// addrWidth returns the on-wire byte width (8 for IPv4+port, 20 for
// IPv6+port) that EncodeHostAddr will produce for addr. A nil addr is
// treated as the zero IPv4 address, matching an unset BornHost/StoreHost.
func addrWidth(addr *net.TCPAddr) int {
	if addr == nil {
		return 8
	}
	if addr.IP.To4() != nil {
		return 8
	}
	return 20
}

// EncodeMessage writes msg into buf starting at offset 0 and returns the
// number of bytes written. buf must be at least ComputeLength(msg) bytes.
// Fields 6 (QueueOffset), 7 (PhysicalOffset) and 11 (StoreTimestamp) are
// taken from msg as already assigned by the appender under the put-lock —
// this function does not assign them itself, matching the original
// encode/doAppend split where the callback fills the buffer and the
// caller has already stamped those three fields moments earlier.
func EncodeMessage(buf []byte, msg *Message) (int, error) {
	total, err := ComputeLength(msg)
	if err != nil {
		return 0, err
	}
	if len(buf) < int(total) {
		return 0, ErrInsufficientBuffer
	}

	bornAddr, bornIPv6 := EncodeHostAddr(msg.BornHost)
	storeAddr, storeIPv6 := EncodeHostAddr(msg.StoreHost)
	sysFlag := msg.SysFlag
	if bornIPv6 {
		sysFlag |= SysFlagIPv6Flag
	}
	if storeIPv6 {
		sysFlag |= sysFlagStoreIPv6Flag
	}

	propsBlob := EncodeProperties(msg.Properties)

	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(total))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], DataMagic)
	off += 4

	crc := crc32.ChecksumIEEE(msg.Body)
	binary.BigEndian.PutUint32(buf[off:], crc)
	off += 4

	binary.BigEndian.PutUint32(buf[off:], uint32(msg.QueueId))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(msg.Flag))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(msg.QueueOffset))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(msg.PhysicalOffset))
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(sysFlag))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(msg.BornTimestamp))
	off += 8
	copy(buf[off:], bornAddr)
	off += len(bornAddr)
	binary.BigEndian.PutUint64(buf[off:], uint64(msg.StoreTimestamp))
	off += 8
	copy(buf[off:], storeAddr)
	off += len(storeAddr)
	binary.BigEndian.PutUint32(buf[off:], uint32(msg.ReconsumeTimes))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(msg.PreparedTxnOffset))
	off += 8

	binary.BigEndian.PutUint32(buf[off:], uint32(len(msg.Body)))
	off += 4
	copy(buf[off:], msg.Body)
	off += len(msg.Body)

	buf[off] = byte(len(msg.Topic))
	off++
	copy(buf[off:], msg.Topic)
	off += len(msg.Topic)

	binary.BigEndian.PutUint16(buf[off:], uint16(len(propsBlob)))
	off += 2
	copy(buf[off:], propsBlob)
	off += len(propsBlob)

	msg.BodyCRC = crc
	return off, nil
}

// sysFlagStoreIPv6Flag marks StoreHost as the 16-byte+port encoding,
// independent of SysFlagIPv6Flag which marks BornHost.
const sysFlagStoreIPv6Flag = SysFlagIPv6Flag << 1

// ScanResult classifies one frame read off disk during recovery, matching
// checkMessageAndReturnSize's three-way return: size>0 a valid record,
// size==0 the end-of-segment blank marker, size<0 unparsable/truncated.
type ScanResult struct {
	Size   int32
	Record *Record
}

// Decode parses one frame starting at buf[0]. It never reads past
// len(buf). It returns ErrTruncatedRecord if buf is too short to contain
// even the fixed header, and ErrBadMagic if the magic code matches
// neither DataMagic nor BlankMagic.
func Decode(buf []byte, checkCRC bool) (ScanResult, error) {
	if len(buf) < 8 {
		return ScanResult{Size: -1}, ErrTruncatedRecord
	}
	totalSize := int32(binary.BigEndian.Uint32(buf[0:4]))
	magic := binary.BigEndian.Uint32(buf[4:8])

	switch magic {
	case BlankMagic:
		return ScanResult{Size: 0}, nil
	case DataMagic:
		// fall through
	default:
		return ScanResult{Size: -1}, ErrBadMagic
	}

	if totalSize < fixedHeaderSize || int(totalSize) > len(buf) {
		return ScanResult{Size: -1}, ErrTruncatedRecord
	}

	rec := &Record{TotalSize: totalSize, MagicCode: magic}
	off := 8

	bodyCRC := binary.BigEndian.Uint32(buf[off:])
	off += 4
	rec.QueueId = int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	rec.Flag = int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	rec.QueueOffset = int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8
	rec.PhysicalOffset = int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8
	sysFlag := int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	rec.SysFlag = sysFlag
	rec.BornTimestamp = int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8

	bornWidth, storeWidth := 8, 8
	if sysFlag&SysFlagIPv6Flag != 0 {
		bornWidth = 20
	}
	if sysFlag&sysFlagStoreIPv6Flag != 0 {
		storeWidth = 20
	}
	// BornHost through BodyLen must fit before any of them is read.
	if off+bornWidth+8+storeWidth+4+8+4 > len(buf) {
		return ScanResult{Size: -1}, ErrTruncatedRecord
	}
	bornAddrStr, err := DecodeHostAddr(buf[off : off+bornWidth])
	if err != nil {
		return ScanResult{Size: -1}, fmt.Errorf("wire: decode born host: %w", err)
	}
	off += bornWidth

	rec.StoreTimestamp = int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8

	storeAddrStr, err := DecodeHostAddr(buf[off : off+storeWidth])
	if err != nil {
		return ScanResult{Size: -1}, fmt.Errorf("wire: decode store host: %w", err)
	}
	off += storeWidth

	rec.ReconsumeTimes = int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	rec.PreparedTxnOffset = int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8

	bodyLen := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	if off+bodyLen+1 > len(buf) {
		return ScanResult{Size: -1}, ErrTruncatedRecord
	}
	if bodyLen > 0 {
		rec.Body = buf[off : off+bodyLen]
	}
	off += bodyLen

	if checkCRC {
		if crc32.ChecksumIEEE(rec.Body) != bodyCRC {
			return ScanResult{Size: -1}, ErrCRCMismatch
		}
	}
	rec.BodyCRC = bodyCRC

	topicLen := int(buf[off])
	off++
	if off+topicLen+2 > len(buf) {
		return ScanResult{Size: -1}, ErrTruncatedRecord
	}
	rec.Topic = string(buf[off : off+topicLen])
	off += topicLen

	propsLen := int(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	if off+propsLen > len(buf) {
		return ScanResult{Size: -1}, ErrTruncatedRecord
	}
	rec.Properties = DecodeProperties(string(buf[off : off+propsLen]))

	rec.BornHostAddrStr = bornAddrStr
	rec.StoreHostAddrStr = storeAddrStr

	return ScanResult{Size: totalSize, Record: rec}, nil
}

// CreateMessageID matches the original's msgId layout: the store host
// address bytes immediately followed by the big-endian physical offset,
// hex-encoded. Consumers use it as an opaque, globally-orderable id.
func CreateMessageID(storeHostAddr []byte, physicalOffset int64) string {
	buf := make([]byte, len(storeHostAddr)+8)
	copy(buf, storeHostAddr)
	binary.BigEndian.PutUint64(buf[len(storeHostAddr):], uint64(physicalOffset))
	return hex.EncodeToString(buf)
}
