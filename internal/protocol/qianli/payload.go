package qianli

import (
	"encoding/binary"
	"errors"
	"strings"
)

var (
	ErrTelemetryLength = errors.New("telemetry payload length mismatch")
	ErrIdentityLength  = errors.New("identity payload too short")
)

// 数值缩放系数
const (
	currentScale = 10000.0
	voltageScale = 1000.0
)

// Telemetry 04 05 上报的电压电流
type Telemetry struct {
	Voltage float64 // V
	Current float64 // A
}

// Power 功率（W）
func (t Telemetry) Power() float64 { return t.Voltage * t.Current }

// DecodeTelemetry 解析 8 字节测量负载：[电流*10000 u32BE][电压*1000 u32BE]
func DecodeTelemetry(payload []byte) (Telemetry, error) {
	if len(payload) != TelemetryPayloadLen {
		return Telemetry{}, ErrTelemetryLength
	}
	rawCurrent := binary.BigEndian.Uint32(payload[0:4])
	rawVoltage := binary.BigEndian.Uint32(payload[4:8])
	return Telemetry{
		Current: float64(rawCurrent) / currentScale,
		Voltage: float64(rawVoltage) / voltageScale,
	}, nil
}

// Identity 设备身份信息
type Identity struct {
	Brand           string
	Model           string
	HardwareVersion string
	FirmwareVersion string
	UID             string
	HasUID          bool
}

// 身份负载字段偏移；[64:68) 保留未用
var (
	fieldBrand    = [2]int{0, 24}
	fieldModel    = [2]int{24, 48}
	fieldHardware = [2]int{48, 56}
	fieldFirmware = [2]int{56, 64}
	fieldUID      = [2]int{68, 92}
)

// DecodeIdentity 解析身份负载
// >=92 字节含 UID；[64,92) 只有基本字段。长度是唯一判别依据，
// 65~91 字节也可能是截断的 92 字节帧，这里按基本字段处理。
func DecodeIdentity(payload []byte) (Identity, error) {
	if len(payload) < IdentityCoreLen {
		return Identity{}, ErrIdentityLength
	}
	id := Identity{
		Brand:           asciiField(payload, fieldBrand),
		Model:           asciiField(payload, fieldModel),
		HardwareVersion: asciiField(payload, fieldHardware),
		FirmwareVersion: asciiField(payload, fieldFirmware),
	}
	if len(payload) >= IdentityFullLen {
		id.UID = asciiField(payload, fieldUID)
		id.HasUID = true
	}
	return id, nil
}

// asciiField 读取定长 ASCII 字段：去掉尾部 NUL，丢弃非 ASCII 及内嵌 NUL 字节
func asciiField(payload []byte, r [2]int) string {
	b := payload[r[0]:r[1]]
	end := len(b)
	for end > 0 && b[end-1] == 0x00 {
		end--
	}
	var sb strings.Builder
	sb.Grow(end)
	for _, c := range b[:end] {
		if c == 0x00 || c > 0x7F {
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
