package qianli

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/ibridge-meter/internal/metrics"
)

// Sink 接收解码后的业务数据（由会话实现）
type Sink interface {
	OnTelemetry(t Telemetry, at time.Time)
	OnIdentity(id Identity, at time.Time)
}

// Adapter iBridge 协议适配器：流式解码 + 路由表分发
type Adapter struct {
	decoder *StreamDecoder
	table   *Table
	sink    Sink
	log     *zap.Logger
	metrics *metrics.AppMetrics
	now     func() time.Time
}

// NewAdapter 创建适配器并注册已知报文处理器
// log、m 允许为空。
func NewAdapter(sink Sink, maxBuffer int, log *zap.Logger, m *metrics.AppMetrics) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Adapter{
		decoder: NewStreamDecoder(maxBuffer),
		table:   NewTable(),
		sink:    sink,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
	a.table.Register(ModelMeter, CmdStream, a.handleTelemetry)
	a.table.RegisterModel(ModelSystem, a.handleIdentity)
	return a
}

// Reset 清空重组缓冲；会话每次建立连接时调用
func (a *Adapter) Reset() { a.decoder.Reset() }

// ProcessBytes 处理原始字节流：切分帧并路由
func (a *Adapter) ProcessBytes(p []byte) {
	st := a.decoder.Feed(p, a.dispatch)
	if st.Resynced > 0 {
		a.log.Debug("resync dropped bytes", zap.Int("bytes", st.Resynced))
	}
	if st.Overflowed > 0 {
		a.log.Warn("reassembly buffer overflow", zap.Int("bytes", st.Overflowed))
	}
	if a.metrics != nil {
		a.metrics.ResyncBytes.Add(float64(st.Resynced))
		a.metrics.OverflowBytes.Add(float64(st.Overflowed))
	}
}

func (a *Adapter) dispatch(f *Frame) {
	matched, err := a.table.Route(f)
	result := "dispatched"
	switch {
	case !matched:
		result = "ignored"
	case err != nil:
		result = "ignored"
		a.log.Debug("payload ignored",
			zap.String("model", hex8(f.Model)),
			zap.String("cmd", hex8(f.Cmd)),
			zap.Int("len", len(f.Payload)),
			zap.Error(err))
		if a.metrics != nil {
			a.metrics.PayloadErrors.WithLabelValues(errorKind(err)).Inc()
		}
	}
	if a.metrics != nil {
		a.metrics.FramesTotal.WithLabelValues(hex8(f.Model), hex8(f.Cmd), result).Inc()
	}
}

func (a *Adapter) handleTelemetry(f *Frame) error {
	t, err := DecodeTelemetry(f.Payload)
	if err != nil {
		return err
	}
	a.sink.OnTelemetry(t, a.now())
	return nil
}

func (a *Adapter) handleIdentity(f *Frame) error {
	id, err := DecodeIdentity(f.Payload)
	if err != nil {
		return err
	}
	a.sink.OnIdentity(id, a.now())
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTelemetryLength):
		return "telemetry_length"
	case errors.Is(err, ErrIdentityLength):
		return "identity_length"
	default:
		return "other"
	}
}

func hex8(b byte) string { return fmt.Sprintf("%02X", b) }
