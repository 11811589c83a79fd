package qianli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityPayload(n int, fields map[int]string) []byte {
	p := make([]byte, n)
	for off, s := range fields {
		copy(p[off:], s)
	}
	return p
}

func TestDecodeTelemetry(t *testing.T) {
	tel, err := DecodeTelemetry([]byte{0x00, 0x00, 0x27, 0x10, 0x00, 0x00, 0x03, 0xE8})
	require.NoError(t, err)
	assert.Equal(t, 1.0, tel.Current)
	assert.Equal(t, 1.0, tel.Voltage)
	assert.Equal(t, 1.0, tel.Power())

	// 5.123V / 2.0468A
	tel, err = DecodeTelemetry([]byte{0x00, 0x00, 0x4F, 0xF4, 0x00, 0x00, 0x14, 0x03})
	require.NoError(t, err)
	assert.InDelta(t, 2.0468, tel.Current, 1e-9)
	assert.InDelta(t, 5.123, tel.Voltage, 1e-9)
}

func TestDecodeTelemetry_WrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 7, 9, 16} {
		_, err := DecodeTelemetry(make([]byte, n))
		if !errors.Is(err, ErrTelemetryLength) {
			t.Fatalf("len=%d: expected ErrTelemetryLength, got %v", n, err)
		}
	}
}

func TestDecodeIdentity(t *testing.T) {
	t.Run("完整字段含UID", func(t *testing.T) {
		p := identityPayload(92, map[int]string{
			0:  "ACME",
			24: "iBridge A3",
			48: "HW1.2",
			56: "FW3.04",
			64: "XXXX", // 保留区，不解析
			68: "0123456789ABCDEF",
		})
		id, err := DecodeIdentity(p)
		require.NoError(t, err)
		assert.Equal(t, "ACME", id.Brand)
		assert.Equal(t, "iBridge A3", id.Model)
		assert.Equal(t, "HW1.2", id.HardwareVersion)
		assert.Equal(t, "FW3.04", id.FirmwareVersion)
		assert.True(t, id.HasUID)
		assert.Equal(t, "0123456789ABCDEF", id.UID)
	})

	t.Run("基本字段无UID", func(t *testing.T) {
		for _, n := range []int{64, 65, 91} {
			id, err := DecodeIdentity(identityPayload(n, map[int]string{0: "ACME"}))
			require.NoError(t, err)
			assert.Equal(t, "ACME", id.Brand)
			assert.False(t, id.HasUID)
			assert.Empty(t, id.UID)
		}
	})

	t.Run("长度不足", func(t *testing.T) {
		_, err := DecodeIdentity(make([]byte, 63))
		assert.ErrorIs(t, err, ErrIdentityLength)
	})

	t.Run("超长负载按完整字段处理", func(t *testing.T) {
		id, err := DecodeIdentity(identityPayload(120, map[int]string{68: "UID"}))
		require.NoError(t, err)
		assert.True(t, id.HasUID)
		assert.Equal(t, "UID", id.UID)
	})
}

func TestDecodeIdentity_NonASCIIDropped(t *testing.T) {
	p := make([]byte, 64)
	copy(p, []byte{'A', 0xFF, 'C', 0x00, 'M', 0x80, 'E'})
	id, err := DecodeIdentity(p)
	require.NoError(t, err)
	assert.Equal(t, "ACME", id.Brand)
}
