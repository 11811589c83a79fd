package session

import (
	"time"

	"github.com/taoyao-code/ibridge-meter/internal/protocol/qianli"
)

// TelemetrySnapshot 最新一次测量值
// 零值表示尚未收到任何测量帧。
type TelemetrySnapshot struct {
	VoltageVolts float64   `json:"voltage_v"`
	CurrentAmps  float64   `json:"current_a"`
	ObservedAt   time.Time `json:"observed_at"`
}

// PowerWatts 功率（W）
func (s TelemetrySnapshot) PowerWatts() float64 { return s.VoltageVolts * s.CurrentAmps }

// IsZero 是否从未更新
func (s TelemetrySnapshot) IsZero() bool { return s.ObservedAt.IsZero() }

// IdentitySnapshot 设备身份信息
type IdentitySnapshot struct {
	Brand           string    `json:"brand"`
	Model           string    `json:"model"`
	HardwareVersion string    `json:"hardware_version"`
	FirmwareVersion string    `json:"firmware_version"`
	UID             string    `json:"uid,omitempty"`
	HasUID          bool      `json:"has_uid"`
	ObservedAt      time.Time `json:"observed_at"`
}

func newTelemetrySnapshot(t qianli.Telemetry, at time.Time) *TelemetrySnapshot {
	return &TelemetrySnapshot{VoltageVolts: t.Voltage, CurrentAmps: t.Current, ObservedAt: at}
}

func newIdentitySnapshot(id qianli.Identity, at time.Time) *IdentitySnapshot {
	return &IdentitySnapshot{
		Brand:           id.Brand,
		Model:           id.Model,
		HardwareVersion: id.HardwareVersion,
		FirmwareVersion: id.FirmwareVersion,
		UID:             id.UID,
		HasUID:          id.HasUID,
		ObservedAt:      at,
	}
}
