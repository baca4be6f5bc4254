package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig configures database instrumentation
type DBConfig struct {
	// TraceEnabled registers otelgorm so every statement gets a span
	TraceEnabled bool
	// LogFullSQL keeps bound variables in span statements. Development only.
	LogFullSQL bool
	// MetricsEnabled records query counts, latencies and pool usage
	MetricsEnabled     bool
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
	DBSystem           string        // default "postgresql"
}

func (c *DBConfig) applyDefaults() {
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval <= 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	if c.DBSystem == "" {
		c.DBSystem = "postgresql"
	}
}

// DBInstrumentation is a GORM plugin adding otelgorm spans, slow query
// marking and query/pool metrics
type DBInstrumentation struct {
	config DBConfig
	logger *zap.Logger

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	poolConns      *Gauge
	poolConnsMax   *Gauge

	sqlDB    *sql.DB
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBInstrumentation builds the plugin. meter may be nil when metrics are
// disabled.
func NewDBInstrumentation(cfg DBConfig, meter metric.Meter, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	d := &DBInstrumentation{config: cfg, logger: logger, stopCh: make(chan struct{})}
	if !cfg.MetricsEnabled || meter == nil {
		d.config.MetricsEnabled = false
		return d, nil
	}

	var err error
	if d.queryTotal, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if d.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total", "Queries slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if d.poolConns, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if d.poolConnsMax, err = NewGauge(meter, "db_pool_connections_max", "Maximum open connections", "{connection}"); err != nil {
		return nil, err
	}
	return d, nil
}

// Name implements gorm.Plugin
func (d *DBInstrumentation) Name() string {
	return "ledger_db_instrumentation"
}

// Initialize implements gorm.Plugin
func (d *DBInstrumentation) Initialize(db *gorm.DB) error {
	if d.config.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(d.config.DBSystem)}
		if !d.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}
	if !d.config.TraceEnabled && !d.config.MetricsEnabled {
		return nil
	}

	cb := db.Callback()
	hooks := []struct {
		name      string
		before    callbackRegistrar
		after     callbackRegistrar
		operation string
	}{
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create"), "INSERT"},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query"), "SELECT"},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update"), "UPDATE"},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete"), "DELETE"},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row"), ""},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw"), ""},
	}
	for _, h := range hooks {
		operation := h.operation
		if err := h.before.Register("ledger_db:before_"+h.name, d.before); err != nil {
			return err
		}
		if err := h.after.Register("ledger_db:after_"+h.name, func(tx *gorm.DB) {
			d.after(tx, operation)
		}); err != nil {
			return err
		}
	}

	if d.config.MetricsEnabled {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		d.sqlDB = sqlDB
	}
	d.logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", d.config.TraceEnabled),
		zap.Bool("metrics", d.config.MetricsEnabled),
		zap.Duration("slow_query_threshold", d.config.SlowQueryThreshold),
	)
	return nil
}

// callbackRegistrar is satisfied by GORM's positioned callbacks
type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

type queryStartKey struct{}

func (d *DBInstrumentation) before(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (d *DBInstrumentation) after(tx *gorm.DB, operation string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	if operation == "" {
		operation = detectOperation(tx.Statement.SQL.String())
	}
	table := tx.Statement.Table
	slow := elapsed > d.config.SlowQueryThreshold

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
		if table != "" {
			span.SetAttributes(attribute.String("db.sql.table", table))
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			span.RecordError(tx.Error)
			span.SetStatus(codes.Error, tx.Error.Error())
		}
		if slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}

	if !d.config.MetricsEnabled {
		return
	}
	d.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	d.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))
	if slow {
		if table == "" {
			table = "unknown"
		}
		d.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

func detectOperation(statement string) string {
	statement = strings.ToUpper(strings.TrimSpace(statement))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(statement, op) {
			return op
		}
	}
	// WITH ... SELECT
	if strings.HasPrefix(statement, "WITH") {
		return "SELECT"
	}
	return "OTHER"
}

// StartPoolStats samples the connection pool until Stop or ctx is done
func (d *DBInstrumentation) StartPoolStats(ctx context.Context) {
	if !d.config.MetricsEnabled || d.sqlDB == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.config.PoolStatsInterval)
		defer ticker.Stop()
		for {
			d.recordPoolStats(ctx)
			select {
			case <-ticker.C:
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *DBInstrumentation) recordPoolStats(ctx context.Context) {
	stats := d.sqlDB.Stats()
	d.poolConnsMax.Record(ctx, int64(stats.MaxOpenConnections))
	d.poolConns.Record(ctx, int64(stats.Idle), AttrDBPoolState.String("idle"))
	d.poolConns.Record(ctx, int64(stats.InUse), AttrDBPoolState.String("in_use"))
	d.poolConns.Record(ctx, int64(stats.OpenConnections), AttrDBPoolState.String("open"))
}

// Stop ends pool sampling. Safe to call more than once.
func (d *DBInstrumentation) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
	})
}
