package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/ibridge-meter/internal/config"
	"github.com/taoyao-code/ibridge-meter/internal/health"
	"github.com/taoyao-code/ibridge-meter/internal/metrics"
	"github.com/taoyao-code/ibridge-meter/internal/session"
)

type fakeMeter struct {
	mu        sync.Mutex
	tel       session.TelemetrySnapshot
	id        *session.IdentitySnapshot
	cmdErr    error
	commands  []string
	connected bool
}

func (f *fakeMeter) LatestTelemetry() session.TelemetrySnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tel
}

func (f *fakeMeter) setTelemetry(t session.TelemetrySnapshot) {
	f.mu.Lock()
	f.tel = t
	f.mu.Unlock()
}

func (f *fakeMeter) LatestIdentity() (session.IdentitySnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.id == nil {
		return session.IdentitySnapshot{}, false
	}
	return *f.id, true
}

func (f *fakeMeter) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmdErr != nil {
		return f.cmdErr
	}
	f.commands = append(f.commands, name)
	return nil
}

func (f *fakeMeter) EnableStream(context.Context) error    { return f.record("enable") }
func (f *fakeMeter) DisableStream(context.Context) error   { return f.record("disable") }
func (f *fakeMeter) RequestIdentity(context.Context) error { return f.record("identity") }
func (f *fakeMeter) Status() session.Status                { return session.Status{ID: "s-1", Connected: f.connected} }
func (f *fakeMeter) Connected() bool                       { return f.connected }
func (f *fakeMeter) Err() error                            { return nil }

func (f *fakeMeter) Fresh(now time.Time, maxAge time.Duration) bool {
	t := f.LatestTelemetry()
	return !t.IsZero() && now.Sub(t.ObservedAt) <= maxAge
}

func newTestServer(t *testing.T, m *fakeMeter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := metrics.NewRegistry()
	metrics.NewAppMetrics(reg)
	agg := health.NewAggregator(health.NewMeterChecker(m, time.Minute))
	return New(cfgpkg.HTTPConfig{PushInterval: 5 * time.Millisecond}, m, agg, "/metrics", metrics.Handler(reg), nil)
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestAPI_Telemetry(t *testing.T) {
	m := &fakeMeter{}
	s := newTestServer(t, m)

	rec := do(s, http.MethodGet, "/api/v1/telemetry")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0.0, body["voltage_v"])

	m.setTelemetry(session.TelemetrySnapshot{VoltageVolts: 5, CurrentAmps: 2, ObservedAt: time.Now()})
	rec = do(s, http.MethodGet, "/api/v1/telemetry")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5.0, body["voltage_v"])
	assert.Equal(t, 2.0, body["current_a"])
	assert.Equal(t, 10.0, body["power_w"])
}

func TestAPI_Identity(t *testing.T) {
	m := &fakeMeter{}
	s := newTestServer(t, m)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/v1/identity").Code)

	m.id = &session.IdentitySnapshot{Brand: "ACME", Model: "A3"}
	rec := do(s, http.MethodGet, "/api/v1/identity")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"brand":"ACME"`)
}

func TestAPI_Commands(t *testing.T) {
	m := &fakeMeter{connected: true}
	s := newTestServer(t, m)

	assert.Equal(t, http.StatusAccepted, do(s, http.MethodPost, "/api/v1/identity/request").Code)
	assert.Equal(t, http.StatusAccepted, do(s, http.MethodPost, "/api/v1/stream/enable").Code)
	assert.Equal(t, http.StatusAccepted, do(s, http.MethodPost, "/api/v1/stream/disable").Code)
	assert.Equal(t, []string{"identity", "enable", "disable"}, m.commands)

	cases := []struct {
		err  error
		code int
	}{
		{session.ErrNotConnected, http.StatusServiceUnavailable},
		{fmt.Errorf("stream_enable: %w: wait", session.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("write: broken pipe"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		m.cmdErr = tc.err
		assert.Equal(t, tc.code, do(s, http.MethodPost, "/api/v1/stream/enable").Code, tc.err.Error())
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	m := &fakeMeter{}
	s := newTestServer(t, m)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/readyz").Code)

	m.connected = true
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health").Code)

	rec := do(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meter_connected")

	rec = do(s, http.MethodGet, "/api/v1/session")
	assert.Contains(t, rec.Body.String(), `"id":"s-1"`)
}

func TestServer_TelemetryWebSocket(t *testing.T) {
	m := &fakeMeter{connected: true}
	s := newTestServer(t, m)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	m.setTelemetry(session.TelemetrySnapshot{VoltageVolts: 9, CurrentAmps: 0.5, ObservedAt: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, 9.0, msg["voltage_v"])
	assert.Equal(t, 4.5, msg["power_w"])

	require.NoError(t, s.Shutdown(context.Background()))
}
