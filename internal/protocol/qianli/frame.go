package qianli

// Frame iBridge 协议帧
// 布局：magic[1]=0xDA | lenLE[2] | model[1] | cmd[1] | params[2] | checksum[1] | payload[len]
type Frame struct {
	Model    byte
	Cmd      byte
	Params   [2]byte
	Checksum byte
	Payload  []byte
}

// Magic 帧起始字节
const Magic byte = 0xDA

// HeaderLen 固定帧头长度（magic..checksum）
const HeaderLen = 8

// 设备型号（路由键高字节）
const (
	ModelSystem byte = 0x01 // 系统/身份信息
	ModelMeter  byte = 0x04 // 电压电流测量
)

// 命令字（路由键低字节）
const (
	CmdIdentity byte = 0x04
	CmdStream   byte = 0x05
)

// 数据流开关负载
const (
	StreamEnable  byte = 0x00
	StreamDisable byte = 0x01
)

// 负载长度约定
const (
	TelemetryPayloadLen = 8
	IdentityCoreLen     = 64
	IdentityFullLen     = 92
)

// DefaultParams 默认 params 字段
var DefaultParams = [2]byte{0x00, 0x00}

// Key 返回 (model, cmd) 组合路由键
func (f *Frame) Key() uint16 { return RouteKey(f.Model, f.Cmd) }

// Size 帧在线路上的总长度
func (f *Frame) Size() int { return HeaderLen + len(f.Payload) }

// RouteKey 组合 model/cmd 为 16 位路由键
func RouteKey(model, cmd byte) uint16 { return uint16(model)<<8 | uint16(cmd) }
