package adapter

// Adapter 协议适配器接口：接收循环只依赖该接口
// 要求：
// - ProcessBytes 处理来自传输层的原始字节流（内部负责半包/粘包与重同步），
//   帧级错误在内部消化，不向调用方传播
// - Reset 在会话开始时清空内部缓冲
type Adapter interface {
	ProcessBytes(p []byte)
	Reset()
}
