package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

// Client owns the GORM handle shared by every repository.
type Client struct {
	conn   *gorm.DB
	driver string
}

// Pinger is what the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", config.DriverPostgres:
		dialector = postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	tunePool(sqlDB, cfg)

	if cfg.Driver == config.DriverSQLite {
		// sqlite allows a single writer at a time.
		sqlDB.SetMaxOpenConns(1)
		if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enabling sqlite foreign keys: %w", err)
		}
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "driver", cfg.Driver), "db.connected")
	}
	return &Client{conn: conn, driver: cfg.Driver}, nil
}

// NewFromGorm wraps a connection opened elsewhere, mostly sqlite in tests.
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn, driver: conn.Dialector.Name()}
}

func tunePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func (c *Client) DB() *gorm.DB { return c.conn }

// Driver is "postgres" or "sqlite".
func (c *Client) Driver() string { return c.driver }

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx commits when fn returns nil and rolls back on error or panic.
// Panics are re-raised after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}

// queryLogger reports slow statements and driver errors through the
// service logger. Record-not-found is expected traffic and stays quiet.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (q *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return q }

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	q.logg.Debug(q.logg.WithField(ctx, "detail", fmt.Sprintf(msg, args...)), "db.info")
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	q.logg.Warn(q.logg.WithField(ctx, "detail", fmt.Sprintf(msg, args...)), "db.warn")
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	q.logg.Error(ctx, "db.error", fmt.Errorf(msg, args...))
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !IsUniqueViolation(err, ""):
		sql, rows := fc()
		q.logg.Error(q.logg.WithFields(ctx, map[string]any{
			"sql": sql, "rows": rows, "elapsed_ms": elapsed.Milliseconds(),
		}), "db.query_failed", err)
	case q.slow > 0 && elapsed > q.slow:
		sql, rows := fc()
		q.logg.Warn(q.logg.WithFields(ctx, map[string]any{
			"sql": sql, "rows": rows, "elapsed_ms": elapsed.Milliseconds(),
		}), "db.slow_query")
	}
}
