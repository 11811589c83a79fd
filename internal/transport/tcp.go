package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"
)

// tcpPort 基于 TCP 的串口服务器通道（ser2net 等原始透传模式）
type tcpPort struct {
	c           net.Conn
	readTimeout time.Duration
	closed      atomic.Bool
}

// DialTCP 连接串口服务器
func DialTCP(ctx context.Context, addr string, readTimeout, dialTimeout time.Duration) (Port, error) {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: dialTimeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newTCPPort(c, readTimeout), nil
}

func newTCPPort(c net.Conn, readTimeout time.Duration) *tcpPort {
	return &tcpPort{c: c, readTimeout: readTimeout}
}

// Read 每次读取刷新 deadline，超时视为无数据
func (p *tcpPort) Read(b []byte) (int, error) {
	_ = p.c.SetReadDeadline(time.Now().Add(p.readTimeout))
	n, err := p.c.Read(b)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (p *tcpPort) Write(b []byte) (int, error) {
	return p.c.Write(b)
}

// ResetInputBuffer 丢弃已到达但未读取的数据
func (p *tcpPort) ResetInputBuffer() error {
	buf := make([]byte, 1024)
	for {
		_ = p.c.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := p.c.Read(buf)
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// ResetOutputBuffer TCP 写入不排队，无需处理
func (p *tcpPort) ResetOutputBuffer() error { return nil }

func (p *tcpPort) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.c.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
