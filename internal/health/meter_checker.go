package health

import (
	"context"
	"time"

	"github.com/taoyao-code/ibridge-meter/internal/session"
)

// MeterState 仪表会话的只读视图
type MeterState interface {
	Connected() bool
	LatestTelemetry() session.TelemetrySnapshot
	Fresh(now time.Time, maxAge time.Duration) bool
	Err() error
}

// MeterChecker 仪表会话健康检查器
type MeterChecker struct {
	meter      MeterState
	staleAfter time.Duration
	now        func() time.Time
}

// NewMeterChecker 创建检查器；staleAfter 内没有新读数视为降级
func NewMeterChecker(meter MeterState, staleAfter time.Duration) *MeterChecker {
	if staleAfter <= 0 {
		staleAfter = 3 * time.Second
	}
	return &MeterChecker{meter: meter, staleAfter: staleAfter, now: time.Now}
}

// Name 返回检查器名称
func (c *MeterChecker) Name() string { return "meter" }

// Check 执行健康检查
func (c *MeterChecker) Check(ctx context.Context) CheckResult {
	start := c.now()

	if !c.meter.Connected() {
		msg := "meter disconnected"
		if err := c.meter.Err(); err != nil {
			msg = err.Error()
		}
		return CheckResult{Status: StatusUnhealthy, Message: msg, Latency: c.now().Sub(start)}
	}

	t := c.meter.LatestTelemetry()
	if t.IsZero() {
		return CheckResult{Status: StatusDegraded, Message: "no telemetry yet", Latency: c.now().Sub(start)}
	}

	age := start.Sub(t.ObservedAt)
	details := map[string]any{
		"voltage_v": t.VoltageVolts,
		"current_a": t.CurrentAmps,
		"age_ms":    age.Milliseconds(),
	}
	if !c.meter.Fresh(start, c.staleAfter) {
		return CheckResult{Status: StatusDegraded, Message: "telemetry stale", Details: details, Latency: c.now().Sub(start)}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Details: details, Latency: c.now().Sub(start)}
}
