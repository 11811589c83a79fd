package qianli

import (
	"encoding/binary"
	"errors"
)

var (
	ErrInvalidMagic = errors.New("invalid magic")
	ErrBadChecksum  = errors.New("bad checksum")
)

// Status 单次解码尝试的结果类别
type Status int

const (
	// NeedMoreData 数据不足，缓冲区保持不变
	NeedMoreData Status = iota
	// Resync 丢弃队首 Consume(=1) 字节后重试
	Resync
	// Decoded 成功解出一帧，消耗 Consume 字节
	Decoded
)

func (s Status) String() string {
	switch s {
	case NeedMoreData:
		return "need_more_data"
	case Resync:
		return "resync"
	case Decoded:
		return "decoded"
	default:
		return "unknown"
	}
}

// DecodeResult TryDecodeOne 的返回值
type DecodeResult struct {
	Status  Status
	Consume int    // 需要从缓冲区头部移除的字节数
	Frame   *Frame // 仅 Decoded 时非空
	Reason  error  // Resync 原因，仅用于诊断
}

// TryDecodeOne 尝试从缓冲区头部解出一帧
// 不修改 buf；返回帧的 Payload 为独立拷贝，调用方可以安全复用 buf。
func TryDecodeOne(buf []byte) DecodeResult {
	if len(buf) < HeaderLen {
		return DecodeResult{Status: NeedMoreData}
	}
	if buf[0] != Magic {
		return DecodeResult{Status: Resync, Consume: 1, Reason: ErrInvalidMagic}
	}
	n := int(binary.LittleEndian.Uint16(buf[1:3]))
	total := HeaderLen + n
	if len(buf) < total {
		return DecodeResult{Status: NeedMoreData}
	}
	payload := buf[HeaderLen:total]
	if !VerifyChecksum(buf[7], payload) {
		// 只滑动 1 字节：真实帧可能紧跟在伪 magic 之后
		return DecodeResult{Status: Resync, Consume: 1, Reason: ErrBadChecksum}
	}
	fr := &Frame{
		Model:    buf[3],
		Cmd:      buf[4],
		Params:   [2]byte{buf[5], buf[6]},
		Checksum: buf[7],
		Payload:  append([]byte(nil), payload...),
	}
	return DecodeResult{Status: Decoded, Consume: total, Frame: fr}
}
