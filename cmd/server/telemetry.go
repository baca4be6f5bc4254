package main

import (
	"context"

	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/config"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/logger"
	"github.com/CortekUK/drive-247-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// telemetryStack holds the OpenTelemetry and Pyroscope providers for the
// process lifetime
type telemetryStack struct {
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// setupTelemetry starts tracing, metrics, log export and profiling. A
// provider that fails to start is logged and replaced by its disabled form;
// observability never blocks startup.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) *telemetryStack {
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}
	t := &telemetryStack{logger: log}

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Error("Failed to start tracing", zap.Error(err))
		tracer, _ = telemetry.NewTracerProvider(ctx, telemetry.Config{}, log)
	}
	t.tracer = tracer

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Error("Failed to start metrics", zap.Error(err))
		meters, _ = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{}, log)
	}
	t.meters = meters

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Error("Failed to start log export", zap.Error(err))
		logs, _ = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{}, log)
	}
	t.logs = logs
	if logs.IsEnabled() {
		t.logger = telemetry.NewBridgedLogger(log, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    serviceName,
			LoggerProvider: logs,
			Level:          logger.ParseLevel(cfg.Log.Level),
		}))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: serviceName,
		AuthToken:       cfg.Profiling.AuthToken,
	}, log)
	if err != nil {
		log.Error("Failed to start profiler", zap.Error(err))
		profiler, _ = telemetry.NewProfiler(telemetry.ProfilerConfig{}, log)
	}
	t.profiler = profiler
	if tracer.IsEnabled() && profiler.IsEnabled() {
		tracer.EnableSpanProfiles()
	}

	return t
}

// shutdown flushes every provider
func (t *telemetryStack) shutdown(log *zap.Logger) {
	ctx := context.Background()
	if err := t.profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := t.tracer.Shutdown(ctx); err != nil {
		log.Error("Error stopping tracer provider", zap.Error(err))
	}
	if err := t.meters.Shutdown(ctx); err != nil {
		log.Error("Error stopping meter provider", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		log.Error("Error stopping logger provider", zap.Error(err))
	}
}
