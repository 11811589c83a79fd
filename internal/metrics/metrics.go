package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 测量会话指标
type AppMetrics struct {
	BytesReceived  prometheus.Counter
	FramesTotal    *prometheus.CounterVec // labels: model, cmd, result=dispatched|ignored
	ResyncBytes    prometheus.Counter
	OverflowBytes  prometheus.Counter
	PayloadErrors  *prometheus.CounterVec // labels: kind
	CommandsTotal  *prometheus.CounterVec // labels: command, result=ok|error
	VoltageGauge   prometheus.Gauge
	CurrentGauge   prometheus.Gauge
	PowerGauge     prometheus.Gauge
	ConnectedGauge prometheus.Gauge
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meter_bytes_received_total",
			Help: "Total bytes read from the meter transport.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meter_frames_total",
			Help: "Valid frames decoded, by routing key and dispatch result.",
		}, []string{"model", "cmd", "result"}),
		ResyncBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meter_resync_bytes_total",
			Help: "Bytes dropped while resynchronizing on bad magic or checksum.",
		}),
		OverflowBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meter_buffer_overflow_bytes_total",
			Help: "Bytes dropped because the reassembly buffer exceeded its cap.",
		}),
		PayloadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meter_payload_error_total",
			Help: "Frames ignored because their payload could not be decoded.",
		}, []string{"kind"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meter_commands_total",
			Help: "Commands written to the meter.",
		}, []string{"command", "result"}),
		VoltageGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meter_voltage_volts",
			Help: "Latest decoded bus voltage.",
		}),
		CurrentGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meter_current_amps",
			Help: "Latest decoded current.",
		}),
		PowerGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meter_power_watts",
			Help: "Latest derived power (V*I).",
		}),
		ConnectedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meter_connected",
			Help: "1 while a receive cycle is running.",
		}),
	}
	reg.MustRegister(m.BytesReceived, m.FramesTotal, m.ResyncBytes, m.OverflowBytes, m.PayloadErrors,
		m.CommandsTotal, m.VoltageGauge, m.CurrentGauge, m.PowerGauge, m.ConnectedGauge)
	return m
}
