package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/ibridge-meter/internal/metrics"
	"github.com/taoyao-code/ibridge-meter/internal/protocol/adapter"
	"github.com/taoyao-code/ibridge-meter/internal/protocol/qianli"
	"github.com/taoyao-code/ibridge-meter/internal/transport"
)

var (
	ErrNotConnected     = errors.New("meter not connected")
	ErrAlreadyConnected = errors.New("meter already connected")
	ErrRateLimited      = errors.New("command rate limited")
	ErrCycleRunning     = errors.New("previous receive cycle still running")
)

const readChunkSize = 512

// Options 会话参数
type Options struct {
	PollInterval time.Duration // 无数据时的空闲等待
	StopTimeout  time.Duration // Disconnect 等待接收循环退出的上限
	MaxBuffer    int           // 重组缓冲上限
	CommandRate  float64       // 下行命令每秒令牌数，<=0 不限速
	CommandBurst int
	Logger       *zap.Logger
	Metrics      *metrics.AppMetrics
}

// Client 单台仪表的连接会话
// 接收循环独占重组缓冲；快照以不可变值原子替换发布，读取方无需加锁。
type Client struct {
	open    transport.Opener
	opts    Options
	log     *zap.Logger
	metrics *metrics.AppMetrics
	limiter *CommandLimiter
	ad      adapter.Adapter // 同一时刻只被一个接收循环持有

	mu    sync.Mutex // 保护 port/stopC/gen
	port  transport.Port
	stopC chan struct{}
	gen   uint64

	writeMu sync.Mutex // 只串行化传输层写入

	id    atomic.Pointer[string]
	doneC atomic.Pointer[chan struct{}]
	live  atomic.Uint64 // 当前在线的连接代数，0 表示未连接

	lastErr   atomic.Pointer[error]
	telemetry atomic.Pointer[TelemetrySnapshot]
	identity  atomic.Pointer[IdentitySnapshot]
}

// New 创建会话（不会立即打开传输）
func New(open transport.Opener, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		open:    open,
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
		limiter: NewCommandLimiter(opts.CommandRate, opts.CommandBurst),
	}
	c.ad = qianli.NewAdapter(snapshotSink{c}, opts.MaxBuffer, opts.Logger, opts.Metrics)
	return c
}

// Connect 打开传输、清空收发缓冲并启动接收循环
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.Done():
	default:
		if c.port != nil {
			return ErrAlreadyConnected
		}
		return ErrCycleRunning
	}
	if c.port != nil {
		// 上一轮接收循环已因读错误退出，回收旧传输
		_ = c.port.Close()
		c.port = nil
	}

	port, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return fmt.Errorf("reset input buffer: %w", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		_ = port.Close()
		return fmt.Errorf("reset output buffer: %w", err)
	}

	c.ad.Reset()
	id := uuid.NewString()
	c.id.Store(&id)
	log := c.log.With(zap.String("session_id", id))

	c.gen++
	doneC := make(chan struct{})
	c.port = port
	c.stopC = make(chan struct{})
	c.doneC.Store(&doneC)
	c.lastErr.Store(nil)
	c.live.Store(c.gen)
	c.setConnectedGauge(true)

	go c.receiveLoop(port, c.ad, c.stopC, doneC, c.gen, log)
	log.Info("meter connected")
	return nil
}

// Disconnect 停止接收循环并关闭传输；可重复调用
// 限时等待期间不持有锁，状态查询不受影响。
func (c *Client) Disconnect() error {
	c.mu.Lock()
	port := c.port
	if port == nil {
		c.mu.Unlock()
		return nil
	}
	c.port = nil
	close(c.stopC)
	gen := c.gen
	doneC := c.Done()
	c.mu.Unlock()

	c.markDisconnected(gen)
	log := c.log.With(zap.String("session_id", c.ID()))

	if !waitDone(doneC, c.opts.StopTimeout) {
		log.Warn("receive cycle still running, closing transport")
	}
	err := port.Close()
	// 关闭传输会让阻塞中的读取返回
	if !waitDone(doneC, c.opts.StopTimeout) {
		log.Error("receive cycle did not exit after close")
	}
	log.Info("meter disconnected")
	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

func waitDone(doneC <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-doneC:
		return true
	case <-t.C:
		return false
	}
}

// EnableStream 打开测量数据流（04 05 00）
func (c *Client) EnableStream(ctx context.Context) error {
	return c.send(ctx, "stream_enable", qianli.EncodeStreamControl(true))
}

// DisableStream 关闭测量数据流（04 05 01）
func (c *Client) DisableStream(ctx context.Context) error {
	return c.send(ctx, "stream_disable", qianli.EncodeStreamControl(false))
}

// RequestIdentity 查询设备身份（01 04）；应答异步到达
func (c *Client) RequestIdentity(ctx context.Context) error {
	return c.send(ctx, "identity_request", qianli.EncodeIdentityRequest())
}

// send 发送命令，不等待应答
func (c *Client) send(ctx context.Context, name string, frame []byte) error {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil || !c.Connected() {
		return ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.observeCommand(name, err)
		return fmt.Errorf("%s: %w", name, err)
	}

	c.writeMu.Lock()
	_, err := port.Write(frame)
	c.writeMu.Unlock()

	c.observeCommand(name, err)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	c.log.Debug("command sent", zap.String("command", name), zap.Binary("frame", frame))
	return nil
}

func (c *Client) observeCommand(name string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.CommandsTotal.WithLabelValues(name, result).Inc()
}

// LatestTelemetry 返回最新测量值副本；从未收到时为零值
func (c *Client) LatestTelemetry() TelemetrySnapshot {
	if p := c.telemetry.Load(); p != nil {
		return *p
	}
	return TelemetrySnapshot{}
}

// LatestIdentity 返回设备身份副本
func (c *Client) LatestIdentity() (IdentitySnapshot, bool) {
	if p := c.identity.Load(); p != nil {
		return *p, true
	}
	return IdentitySnapshot{}, false
}

// Fresh 判断最近一次测量是否在 maxAge 之内
func (c *Client) Fresh(now time.Time, maxAge time.Duration) bool {
	t := c.LatestTelemetry()
	if t.IsZero() {
		return false
	}
	return now.Sub(t.ObservedAt) <= maxAge
}

// Connected 接收循环是否在运行
func (c *Client) Connected() bool { return c.live.Load() != 0 }

// Err 返回导致上一轮接收循环退出的错误
func (c *Client) Err() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// ID 当前（或最近一次）会话 ID
func (c *Client) ID() string {
	if p := c.id.Load(); p != nil {
		return *p
	}
	return ""
}

var closedC = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done 接收循环退出时关闭；未连接过时返回已关闭通道
func (c *Client) Done() <-chan struct{} {
	if p := c.doneC.Load(); p != nil {
		return *p
	}
	return closedC
}

// Status 会话状态概览
type Status struct {
	ID        string       `json:"id"`
	Connected bool         `json:"connected"`
	LastError string       `json:"last_error,omitempty"`
	Commands  LimiterStats `json:"commands"`
}

// Status 返回会话状态
func (c *Client) Status() Status {
	st := Status{ID: c.ID(), Connected: c.Connected(), Commands: c.limiter.Stats()}
	if err := c.Err(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// markDisconnected 只清除本代连接的在线状态，过期的接收循环不会影响新连接
func (c *Client) markDisconnected(gen uint64) {
	if c.live.CompareAndSwap(gen, 0) {
		c.setConnectedGauge(false)
	}
}

func (c *Client) setConnectedGauge(v bool) {
	if c.metrics == nil {
		return
	}
	if v {
		c.metrics.ConnectedGauge.Set(1)
	} else {
		c.metrics.ConnectedGauge.Set(0)
	}
}

// receiveLoop 接收循环：轮询传输 -> 喂给适配器 -> 无数据时短暂休眠
// 每次轮询前检查停止信号；读错误视为传输失效，结束循环但不影响进程。
func (c *Client) receiveLoop(port transport.Port, ad adapter.Adapter, stopC <-chan struct{}, doneC chan<- struct{}, gen uint64, log *zap.Logger) {
	defer close(doneC)
	defer c.markDisconnected(gen)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("receive cycle panic: %v", r)
			c.lastErr.Store(&err)
			log.Error("receive cycle aborted", zap.Error(err))
		}
	}()

	idle := time.NewTimer(c.opts.PollInterval)
	idle.Stop()
	defer idle.Stop()

	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-stopC:
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			if c.metrics != nil {
				c.metrics.BytesReceived.Add(float64(n))
			}
			ad.ProcessBytes(buf[:n])
		}
		if err != nil {
			select {
			case <-stopC:
				// Disconnect 关闭传输导致的读错误
				return
			default:
			}
			c.lastErr.Store(&err)
			log.Warn("receive cycle stopped", zap.Error(err))
			return
		}
		if n == 0 {
			idle.Reset(c.opts.PollInterval)
			select {
			case <-stopC:
				return
			case <-idle.C:
			}
		}
	}
}

// snapshotSink 把解码结果写入会话快照
type snapshotSink struct{ c *Client }

func (s snapshotSink) OnTelemetry(t qianli.Telemetry, at time.Time) {
	s.c.telemetry.Store(newTelemetrySnapshot(t, at))
	if m := s.c.metrics; m != nil {
		m.VoltageGauge.Set(t.Voltage)
		m.CurrentGauge.Set(t.Current)
		m.PowerGauge.Set(t.Power())
	}
}

func (s snapshotSink) OnIdentity(id qianli.Identity, at time.Time) {
	s.c.identity.Store(newIdentitySnapshot(id, at))
	s.c.log.Info("device identity",
		zap.String("brand", id.Brand),
		zap.String("model", id.Model),
		zap.String("hw", id.HardwareVersion),
		zap.String("fw", id.FirmwareVersion),
		zap.String("uid", id.UID))
}
