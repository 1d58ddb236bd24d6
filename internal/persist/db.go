package persist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cerea1/lifetime/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// WriteTimeout bounds one journal batch. The server enforces it as the
// session statement_timeout as well, so a stuck flush cannot hold the loop.
const WriteTimeout = 5 * time.Second

const applicationName = "lifetimed"

// DB wraps the journal's pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// poolConfig turns the journal section into a pool config. The journal has
// a single writer (the persist phase) plus run bookkeeping, so the pool is
// kept small: idle connections never exceed the maximum, and at least one
// connection stays open between flushes.
func poolConfig(cfg config.JournalConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	maxConns := max(cfg.MaxOpenConns, 1)
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = int32(min(max(cfg.MaxIdleConns, 1), maxConns))
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.HealthCheckPeriod = time.Minute

	params := poolCfg.ConnConfig.RuntimeParams
	if _, set := params["application_name"]; !set {
		params["application_name"] = applicationName
	}
	params["statement_timeout"] = strconv.FormatInt(WriteTimeout.Milliseconds(), 10)
	return poolCfg, nil
}

func NewDB(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	// Verify connection and report the server the journal writes to.
	checkCtx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	var version string
	if err := pool.QueryRow(checkCtx, "SHOW server_version").Scan(&version); err != nil {
		pool.Close()
		return nil, fmt.Errorf("check db: %w", err)
	}

	log.Info("journal database connected",
		zap.String("server_version", version),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int32("min_conns", poolCfg.MinConns),
		zap.Int("flush_ticks", cfg.FlushTicks))
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	st := db.Pool.Stat()
	db.log.Debug("journal database closing",
		zap.Int64("acquires", st.AcquireCount()),
		zap.Duration("acquire_wait", st.AcquireDuration()))
	db.Pool.Close()
}
