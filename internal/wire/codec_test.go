package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddr(ip string, port int) *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "simple body and topic",
			msg: Message{
				Topic:          "orders",
				QueueId:        2,
				Flag:           0,
				BornTimestamp:  1700000000000,
				BornHost:       testAddr("10.0.0.1", 9000),
				StoreTimestamp: 1700000000500,
				StoreHost:      testAddr("10.0.0.2", 9001),
				Body:           []byte("hello world"),
				Properties:     map[string]string{"key": "abc"},
				QueueOffset:    42,
				PhysicalOffset: 1024,
			},
		},
		{
			name: "empty body and no properties",
			msg: Message{
				Topic:          "t",
				BornHost:       testAddr("127.0.0.1", 1),
				StoreHost:      testAddr("127.0.0.1", 2),
				Body:           nil,
				QueueOffset:    0,
				PhysicalOffset: 0,
			},
		},
		{
			name: "ipv6 store host",
			msg: Message{
				Topic:          "v6",
				BornHost:       testAddr("::1", 1),
				StoreHost:      testAddr("2001:db8::1", 9999),
				Body:           []byte("x"),
				QueueOffset:    7,
				PhysicalOffset: 99,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			length, err := ComputeLength(&tc.msg)
			require.NoError(t, err)

			buf := make([]byte, length)
			n, err := EncodeMessage(buf, &tc.msg)
			require.NoError(t, err)
			assert.Equal(t, int(length), n, "wrote bytes should match computed length")

			res, err := Decode(buf, true)
			require.NoError(t, err)
			assert.Equal(t, length, res.Size)

			rec := res.Record
			assert.Equal(t, tc.msg.Topic, rec.Topic)
			assert.Equal(t, tc.msg.Body, rec.Body)
			assert.Equal(t, tc.msg.QueueOffset, rec.QueueOffset)
			assert.Equal(t, tc.msg.PhysicalOffset, rec.PhysicalOffset)
			for k, v := range tc.msg.Properties {
				assert.Equal(t, v, rec.Properties[k], "Properties[%q]", k)
			}
		})
	}
}

func TestDecodeBlankMagic(t *testing.T) {
	buf := make([]byte, MinPaddingBytes)
	buf[4], buf[5], buf[6], buf[7] = 0xCB, 0xD4, 0x31, 0x94
	res, err := Decode(buf, false)
	require.NoError(t, err)
	assert.Equal(t, int32(0), res.Size, "blank padding frame should decode to size 0")
}

func TestDecodeTruncated(t *testing.T) {
	res, err := Decode([]byte{1, 2, 3}, false)
	require.Error(t, err)
	assert.Equal(t, int32(-1), res.Size)
}

func TestDecodeBadMagic(t *testing.T) {
	buf := make([]byte, 8)
	res, err := Decode(buf, false)
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Equal(t, int32(-1), res.Size)
}

func TestComputeLengthRejectsOversizedTopic(t *testing.T) {
	topic := make([]byte, MaxTopicLen+1)
	msg := Message{Topic: string(topic)}
	_, err := ComputeLength(&msg)
	require.ErrorIs(t, err, ErrTopicTooLong)
}

func TestCreateMessageID(t *testing.T) {
	addr, _ := EncodeHostAddr(testAddr("10.0.0.1", 9000))
	id := CreateMessageID(addr, 12345)
	assert.Equal(t, hexLen(len(addr)+8), len(id))
}

func hexLen(n int) int { return n * 2 }
