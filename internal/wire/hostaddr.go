package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// SysFlagIPv6Flag marks BornHost as a 20-byte IPv6+port encoding instead
// of the default 8-byte IPv4+port encoding; StoreHost's width has its
// own bit, sysFlagStoreIPv6Flag (field 8, SysFlag,
// §3 field 10 note: "16 bytes when SysFlag indicates IPv6").
const SysFlagIPv6Flag int32 = 1 << 4

// EncodeHostAddr packs an IP+port into the wire's host-address encoding:
// 4 bytes of IPv4 (or 16 of IPv6) followed by a 4-byte big-endian port.
func EncodeHostAddr(addr *net.TCPAddr) ([]byte, bool) {
	if addr == nil {
		return make([]byte, 8), false
	}
	ip4 := addr.IP.To4()
	if ip4 != nil {
		buf := make([]byte, 8)
		copy(buf[0:4], ip4)
		binary.BigEndian.PutUint32(buf[4:8], uint32(addr.Port))
		return buf, false
	}

	ip16 := addr.IP.To16()
	buf := make([]byte, 20)
	copy(buf[0:16], ip16)
	binary.BigEndian.PutUint32(buf[16:20], uint32(addr.Port))
	return buf, true
}

// DecodeHostAddr is the inverse of EncodeHostAddr.
func DecodeHostAddr(b []byte) (string, error) {
	switch len(b) {
	case 8:
		ip := net.IP(b[0:4])
		port := binary.BigEndian.Uint32(b[4:8])
		return fmt.Sprintf("%s:%d", ip.String(), port), nil
	case 20:
		ip := net.IP(b[0:16])
		port := binary.BigEndian.Uint32(b[16:20])
		return fmt.Sprintf("%s:%d", ip.String(), port), nil
	default:
		return "", fmt.Errorf("wire: invalid host address length %d", len(b))
	}
}
