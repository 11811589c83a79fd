package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/ibridge-meter/internal/stats"
)

// identitySettle 查询身份后等待应答再开流，避免两类应答交错
const identitySettle = 300 * time.Millisecond

func monitorCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream live voltage, current and power to the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()
			return runMonitor(e, interval)
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 100*time.Millisecond, "refresh interval")
	return cmd
}

func runMonitor(e *env, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.client.Connect(ctx); err != nil {
		return err
	}
	if err := e.client.RequestIdentity(ctx); err != nil {
		e.log.Warn("identity request failed", zap.Error(err))
	}
	time.Sleep(identitySettle)
	if err := e.client.EnableStream(ctx); err != nil {
		return err
	}
	if id, ok := e.client.LatestIdentity(); ok {
		fmt.Printf("%s %s  hw %s  fw %s\n", id.Brand, id.Model, id.HardwareVersion, id.FirmwareVersion)
	}
	fmt.Println("Monitoring... press Ctrl+C to stop")

	tracker := stats.NewTracker(time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lost error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-e.client.Done():
			lost = e.client.Err()
			if lost == nil {
				lost = errors.New("meter disconnected")
			}
			break loop
		case <-ticker.C:
			t := e.client.LatestTelemetry()
			tracker.Observe(t)
			fmt.Printf("\rVoltage: %7.3f V  |  Current: %6.3f A  |  Power: %7.3f W   ",
				t.VoltageVolts, t.CurrentAmps, t.PowerWatts())
		}
	}
	fmt.Println()

	if lost == nil {
		// 关闭前停止数据流，下次连接时设备处于安静状态
		dctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := e.client.DisableStream(dctx); err != nil {
			e.log.Warn("disable stream failed", zap.Error(err))
		}
		cancel()
	}
	printSummary(tracker.Summary())
	return lost
}

func printSummary(s stats.Summary) {
	if s.Samples == 0 {
		fmt.Println("No readings received.")
		return
	}
	fmt.Printf("Samples: %d over %s\n", s.Samples, time.Since(s.Since).Round(time.Second))
	fmt.Printf("Voltage  min %.3f V  max %.3f V\n", s.Voltage.Min, s.Voltage.Max)
	fmt.Printf("Current  min %.3f A  max %.3f A\n", s.Current.Min, s.Current.Max)
	fmt.Printf("Power    min %.3f W  max %.3f W\n", s.Power.Min, s.Power.Max)
}
