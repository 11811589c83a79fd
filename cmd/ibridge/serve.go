package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/ibridge-meter/internal/health"
	"github.com/taoyao-code/ibridge-meter/internal/httpserver"
	"github.com/taoyao-code/ibridge-meter/internal/metrics"
)

func serveCmd() *cobra.Command {
	var reconnect time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose live readings over HTTP/WebSocket with health and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()
			return runServe(e, reconnect)
		},
	}
	cmd.Flags().DurationVar(&reconnect, "reconnect", 2*time.Second, "delay between reconnect attempts after the meter drops")
	return cmd
}

func runServe(e *env, reconnect time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := e.log

	agg := health.NewAggregator(health.NewMeterChecker(e.client, e.cfg.Health.StaleAfter))
	var metricsHandler http.Handler
	if e.cfg.Metrics.Enable {
		metricsHandler = metrics.Handler(e.registry)
	}
	srv := httpserver.New(e.cfg.HTTP, e.client, agg, e.cfg.Metrics.Path, metricsHandler, log)

	go func() {
		log.Info("http server listening", zap.String("addr", e.cfg.HTTP.Addr))
		if err := srv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	// 仪表掉线后按固定间隔重连，HTTP 期间继续提供最后一次读数
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		superviseMeter(ctx, e, reconnect)
	}()

	<-ctx.Done()
	<-supervised

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if e.client.Connected() {
		if err := e.client.DisableStream(shutdownCtx); err != nil {
			log.Warn("disable stream failed", zap.Error(err))
		}
	}
	return srv.Shutdown(shutdownCtx)
}

func superviseMeter(ctx context.Context, e *env, reconnect time.Duration) {
	log := e.log
	for {
		if err := e.client.Connect(ctx); err != nil {
			log.Warn("meter connect failed", zap.Error(err))
		} else {
			if err := e.client.RequestIdentity(ctx); err != nil {
				log.Warn("identity request failed", zap.Error(err))
			}
			time.Sleep(identitySettle)
			if err := e.client.EnableStream(ctx); err != nil {
				log.Warn("enable stream failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-e.client.Done():
				log.Warn("meter dropped", zap.Error(e.client.Err()))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnect):
		}
	}
}
