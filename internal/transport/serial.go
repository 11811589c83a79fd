package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate iBridge 默认波特率
const DefaultBaudRate = 115200

// OpenSerial 以 8N1 打开串口并设置短读超时
// go.bug.st/serial 的 Port 在超时时返回 (0, nil)，直接满足 Port 接口。
func OpenSerial(name string, baud int, readTimeout time.Duration) (Port, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	return port, nil
}

// ListSerialPorts 列出系统可用串口
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
