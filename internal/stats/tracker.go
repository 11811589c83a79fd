package stats

import (
	"math"
	"sync"
	"time"

	"github.com/taoyao-code/ibridge-meter/internal/session"
)

// Range 最小/最大值
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *Range) observe(v float64) {
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

// Summary 统计快照
type Summary struct {
	Samples int       `json:"samples"`
	Voltage Range     `json:"voltage_v"`
	Current Range     `json:"current_a"`
	Power   Range     `json:"power_w"`
	Since   time.Time `json:"since"`
}

// Tracker 读数统计：只统计 since 之后观测到的新读数，同一读数重复采样只计一次
type Tracker struct {
	mu   sync.Mutex
	sum  Summary
	last time.Time
}

// NewTracker 创建统计器；早于 since 的读数视为启动残留，不计入
func NewTracker(since time.Time) *Tracker {
	t := &Tracker{}
	t.Reset(since)
	return t
}

// Observe 记录一次读数，返回是否被计入
func (t *Tracker) Observe(s session.TelemetrySnapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.IsZero() || !s.ObservedAt.After(t.sum.Since) || !s.ObservedAt.After(t.last) {
		return false
	}
	t.last = s.ObservedAt
	t.sum.Samples++
	t.sum.Voltage.observe(s.VoltageVolts)
	t.sum.Current.observe(s.CurrentAmps)
	t.sum.Power.observe(s.PowerWatts())
	return true
}

// Summary 返回统计副本；无样本时各区间为零值
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sum.Samples == 0 {
		return Summary{Since: t.sum.Since}
	}
	return t.sum
}

// Reset 清空统计
func (t *Tracker) Reset(since time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	empty := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	t.sum = Summary{Voltage: empty, Current: empty, Power: empty, Since: since}
	t.last = time.Time{}
}
