package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig tunes the GORM query logger
type GormConfig struct {
	// Level is one of silent, error, warn, info or debug
	Level string
	// SlowThreshold of zero disables slow-query warnings
	SlowThreshold time.Duration
	// MaxSQLLength truncates logged statements; zero keeps them whole
	MaxSQLLength int
}

// GormLogger routes GORM statements through zap, tagged with the tenant,
// request and payment carried by the context.
type GormLogger struct {
	logger *zap.Logger
	level  gormlogger.LogLevel
	cfg    GormConfig
}

// NewGormLogger builds a GORM logger from cfg
func NewGormLogger(zapLogger *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{
		logger: zapLogger.Named("gorm"),
		level:  MapGormLogLevel(cfg.Level),
		cfg:    cfg,
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Sugar().With(l.scope(ctx)...).Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Sugar().With(l.scope(ctx)...).Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Sugar().With(l.scope(ctx)...).Errorf(msg, data...)
	}
}

// Trace logs one finished statement. Missing rows are never logged and
// unique violations drop to debug: both are normal outcomes for the
// payment gate and the idempotent inserts.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && errors.Is(err, gormlogger.ErrRecordNotFound):
		return
	case err != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		l.logger.Debug("duplicate key", l.statement(ctx, elapsed, fc, err)...)
	case err != nil && l.level >= gormlogger.Error:
		l.logger.Error("query failed", l.statement(ctx, elapsed, fc, err)...)
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.level >= gormlogger.Warn:
		fields := append(l.statement(ctx, elapsed, fc, nil), zap.Duration("threshold", l.cfg.SlowThreshold))
		l.logger.Warn("slow query", fields...)
	case l.level >= gormlogger.Info:
		l.logger.Debug("query", l.statement(ctx, elapsed, fc, nil)...)
	}
}

func (l *GormLogger) statement(ctx context.Context, elapsed time.Duration, fc func() (string, int64), err error) []zap.Field {
	sql, rows := fc()
	if n := l.cfg.MaxSQLLength; n > 0 && len(sql) > n {
		sql = sql[:n] + "..."
	}
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	for _, f := range l.scope(ctx) {
		fields = append(fields, f.(zap.Field))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

func (l *GormLogger) scope(ctx context.Context) []any {
	var fields []any
	if id := GetTenantID(ctx); id != "" {
		fields = append(fields, zap.String("tenant_id", id))
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetPaymentID(ctx); id != "" {
		fields = append(fields, zap.String("payment_id", id))
	}
	return fields
}

// MapGormLogLevel maps a config level name to GORM's log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
