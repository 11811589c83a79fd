package qianli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode_StreamControlGolden(t *testing.T) {
	// 与网页版客户端发送的字节完全一致
	assert.Equal(t, []byte{0xDA, 0x01, 0x00, 0x04, 0x05, 0x00, 0x00, 0x00, 0x00}, EncodeStreamControl(true))
	assert.Equal(t, []byte{0xDA, 0x01, 0x00, 0x04, 0x05, 0x00, 0x00, 0x01, 0x01}, EncodeStreamControl(false))
}

func TestEncode_EmptyPayloadSubstituted(t *testing.T) {
	got := EncodeIdentityRequest()
	assert.Equal(t, []byte{0xDA, 0x01, 0x00, 0x01, 0x04, 0x00, 0x00, 0x00, 0x00}, got)

	got = Encode(0x01, 0x04, DefaultParams, []byte{})
	assert.Len(t, got, HeaderLen+1)
}

func TestEncode_LayoutAndParams(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	got := Encode(0x07, 0x09, [2]byte{0x11, 0x22}, payload)

	assert.Equal(t, Magic, got[0])
	assert.Equal(t, byte(300&0xFF), got[1], "length is little-endian")
	assert.Equal(t, byte(300>>8), got[2])
	assert.Equal(t, byte(0x07), got[3])
	assert.Equal(t, byte(0x09), got[4])
	assert.Equal(t, byte(0x11), got[5])
	assert.Equal(t, byte(0x22), got[6])
	assert.Equal(t, XorFold(payload), got[7])
	assert.Equal(t, payload, got[HeaderLen:])
}
