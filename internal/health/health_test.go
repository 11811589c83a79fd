package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/ibridge-meter/internal/session"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator(t *testing.T) {
	t.Run("全部健康", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"meter", StatusHealthy}, &mockChecker{"other", StatusHealthy})
		assert.Equal(t, StatusHealthy, agg.Report(context.Background()).Status)
		assert.True(t, agg.Ready(context.Background()))
	})

	t.Run("部分降级仍就绪", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"meter", StatusDegraded}, &mockChecker{"other", StatusHealthy})
		assert.Equal(t, StatusDegraded, agg.Report(context.Background()).Status)
		assert.True(t, agg.Ready(context.Background()))
	})

	t.Run("任一不健康", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"meter", StatusUnhealthy}, &mockChecker{"other", StatusDegraded})
		assert.Equal(t, StatusUnhealthy, agg.Report(context.Background()).Status)
		assert.False(t, agg.Ready(context.Background()))
	})

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})
		assert.Len(t, agg.CheckAll(context.Background()), 2)
	})

	t.Run("无检查器视为健康", func(t *testing.T) {
		assert.Equal(t, StatusHealthy, NewAggregator().Report(context.Background()).Status)
	})
}

var _ MeterState = (*session.Client)(nil)

type fakeMeter struct {
	connected bool
	tel       session.TelemetrySnapshot
	err       error
}

func (f *fakeMeter) Connected() bool                            { return f.connected }
func (f *fakeMeter) LatestTelemetry() session.TelemetrySnapshot { return f.tel }
func (f *fakeMeter) Err() error                                 { return f.err }
func (f *fakeMeter) Fresh(now time.Time, maxAge time.Duration) bool {
	return !f.tel.IsZero() && now.Sub(f.tel.ObservedAt) <= maxAge
}

func TestMeterChecker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		meter  *fakeMeter
		status Status
		msg    string
	}{
		{"断开带错误", &fakeMeter{err: errors.New("device unplugged")}, StatusUnhealthy, "device unplugged"},
		{"断开", &fakeMeter{}, StatusUnhealthy, "meter disconnected"},
		{"尚无读数", &fakeMeter{connected: true}, StatusDegraded, "no telemetry yet"},
		{"读数过期", &fakeMeter{connected: true, tel: session.TelemetrySnapshot{VoltageVolts: 5, ObservedAt: now.Add(-10 * time.Second)}}, StatusDegraded, "telemetry stale"},
		{"正常", &fakeMeter{connected: true, tel: session.TelemetrySnapshot{VoltageVolts: 5, ObservedAt: now.Add(-time.Second)}}, StatusHealthy, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewMeterChecker(tc.meter, 3*time.Second)
			c.now = func() time.Time { return now }
			r := c.Check(context.Background())
			assert.Equal(t, tc.status, r.Status)
			assert.Equal(t, tc.msg, r.Message)
		})
	}
}

func TestRegisterHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHTTPRoutes(r, NewAggregator(NewMeterChecker(&fakeMeter{}, time.Second)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks, "meter")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
