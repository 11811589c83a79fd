package qianli

import "encoding/binary"

// DefaultMaxBuffer 默认待解码字节上限
// 协议最大帧为 8+65535，实际设备帧不超过百字节，这里放宽到 4KB
const DefaultMaxBuffer = 4096

// compactThreshold 已消费前缀超过该值时才搬移剩余数据
const compactThreshold = 1024

// FeedStats 单次 Feed 的处理统计
type FeedStats struct {
	Frames     int // 分发的帧数
	Resynced   int // 因 magic/校验失败丢弃的字节数
	Overflowed int // 因超出缓冲上限丢弃的字节数
}

// StreamDecoder 处理半包/粘包的流式解码器
// 非并发安全：只应由接收循环持有。
type StreamDecoder struct {
	buf       []byte
	off       int // 已消费的前缀长度
	maxBuffer int // 保护上限，避免畸形长度占用过多内存
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder(maxBuffer int) *StreamDecoder {
	if maxBuffer < HeaderLen+IdentityFullLen {
		maxBuffer = DefaultMaxBuffer
	}
	return &StreamDecoder{maxBuffer: maxBuffer}
}

// Buffered 返回尚未消费的字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) - d.off }

// Reset 清空缓冲
func (d *StreamDecoder) Reset() {
	d.buf = d.buf[:0]
	d.off = 0
}

// Feed 追加数据并尽可能解出多帧
// 每个解出的帧在下一次解码前同步交给 h，顺序与到达顺序一致。
// 每轮循环至少消费 1 字节或停止，因此总能结束。
func (d *StreamDecoder) Feed(p []byte, h func(*Frame)) FeedStats {
	var st FeedStats
	if len(p) > 0 {
		d.compact()
		d.buf = append(d.buf, p...)
	}

	for {
		res := TryDecodeOne(d.buf[d.off:])
		switch res.Status {
		case Decoded:
			d.off += res.Consume
			st.Frames++
			if h != nil {
				h(res.Frame)
			}
		case Resync:
			d.off += res.Consume
			st.Resynced += res.Consume
		default:
			if d.Buffered() > d.maxBuffer || d.declaredTooLarge() {
				// 声明长度超出上限的伪帧头永远无法解出：立即丢弃 1 字节继续同步
				d.off++
				st.Overflowed++
				continue
			}
			if d.Buffered() == 0 {
				d.Reset()
			}
			return st
		}
	}
}

// declaredTooLarge 队首帧头声明的总长是否超过缓冲上限
func (d *StreamDecoder) declaredTooLarge() bool {
	if d.Buffered() < HeaderLen {
		return false
	}
	n := int(binary.LittleEndian.Uint16(d.buf[d.off+1 : d.off+3]))
	return HeaderLen+n > d.maxBuffer
}

// compact 将未消费数据搬回切片头部，避免每消费一个字节都整体移动
func (d *StreamDecoder) compact() {
	if d.off == 0 {
		return
	}
	if d.off < compactThreshold && d.off < len(d.buf)/2 {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}
