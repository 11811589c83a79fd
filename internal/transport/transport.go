package transport

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Port 字节流双工通道
// Read 为短超时读取：超时返回 (0, nil)；返回错误表示通道已失效。
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Close() error
}

// Opener 打开一个 Port
type Opener func(ctx context.Context) (Port, error)

// Options 打开参数
type Options struct {
	Address     string        // 串口路径或 tcp://host:port
	BaudRate    int           // 仅串口
	ReadTimeout time.Duration // 单次读取超时
	DialTimeout time.Duration // 仅 TCP
}

var ErrEmptyAddress = errors.New("empty port address")

const tcpScheme = "tcp://"

// Open 根据地址选择串口或 TCP 串口服务器
func Open(ctx context.Context, opts Options) (Port, error) {
	if opts.Address == "" {
		return nil, ErrEmptyAddress
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 50 * time.Millisecond
	}
	if strings.HasPrefix(opts.Address, tcpScheme) {
		return DialTCP(ctx, strings.TrimPrefix(opts.Address, tcpScheme), opts.ReadTimeout, opts.DialTimeout)
	}
	return OpenSerial(opts.Address, opts.BaudRate, opts.ReadTimeout)
}

// NewOpener 绑定参数，返回会话使用的 Opener
func NewOpener(opts Options) Opener {
	return func(ctx context.Context) (Port, error) { return Open(ctx, opts) }
}
