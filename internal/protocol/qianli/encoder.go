package qianli

import "encoding/binary"

// Encode 构造一帧下行命令
// 固件拒绝零长度负载，空负载会被替换为单字节 0x00（len=1）。
// payload 长度须在 uint16 范围内，命令类负载都远小于此。
func Encode(model, cmd byte, params [2]byte, payload []byte) []byte {
	if len(payload) == 0 {
		payload = []byte{0x00}
	}
	out := make([]byte, HeaderLen+len(payload))
	out[0] = Magic
	binary.LittleEndian.PutUint16(out[1:3], uint16(len(payload)))
	out[3] = model
	out[4] = cmd
	out[5] = params[0]
	out[6] = params[1]
	out[7] = XorFold(payload)
	copy(out[HeaderLen:], payload)
	return out
}

// EncodeStreamControl 数据流开关命令（04 05）：enable=true 发送 0x00，否则 0x01
func EncodeStreamControl(enable bool) []byte {
	v := StreamDisable
	if enable {
		v = StreamEnable
	}
	return Encode(ModelMeter, CmdStream, DefaultParams, []byte{v})
}

// EncodeIdentityRequest 设备身份查询命令（01 04，空负载）
func EncodeIdentityRequest() []byte {
	return Encode(ModelSystem, CmdIdentity, DefaultParams, nil)
}
