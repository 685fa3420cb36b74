package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/config"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/invite/smtp"
	"github.com/alecgard/mergeflow/internal/metrics"
	"github.com/alecgard/mergeflow/internal/store"
	"github.com/alecgard/mergeflow/internal/store/memory"
	"github.com/alecgard/mergeflow/internal/store/postgres"
)

// loadConfig applies the --store override before validation.
func loadConfig() (*config.Config, error) {
	if storeFlag != "" {
		_ = os.Setenv("MERGEFLOW_STORE", storeFlag)
	}
	return config.Load(cfgFile)
}

// setupLogger installs a JSON slog default writing to stdout and, when
// configured, the log file. The returned func closes the file.
func setupLogger(cfg config.LogConfig) (func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return closeFn, nil
}

// backend is the opened persistence layer. pool is nil for the memory store.
type backend struct {
	store    store.Store
	audit    audit.BatchInserter
	activity audit.Reader
	pool     *pgxpool.Pool
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackend(ctx context.Context, cfg config.DatabaseConfig) (*backend, error) {
	if cfg.Driver == config.DriverMemory {
		mem := memory.New()
		slog.Warn("using in-memory store; data is lost on exit")
		return &backend{store: mem, audit: mem, activity: mem}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	slog.Info("connected to database")

	pg := postgres.NewStore(pool)
	return &backend{store: pg, audit: pg, activity: pg, pool: pool}, nil
}

// poolStats adapts pgxpool statistics for the metrics collector.
func poolStats(pool *pgxpool.Pool) metrics.DBPoolStatFunc {
	return func() metrics.PoolStats {
		s := pool.Stat()
		return metrics.PoolStats{
			Total:         s.TotalConns(),
			Idle:          s.IdleConns(),
			Acquired:      s.AcquiredConns(),
			Max:           s.MaxConns(),
			EmptyAcquires: s.EmptyAcquireCount(),
		}
	}
}

// newMailer returns the SMTP transport, or a logging one when no host is set.
func newMailer(cfg config.MailConfig) invite.Mailer {
	if cfg.Host == "" {
		slog.Warn("no smtp host configured; invitations are logged, not sent")
		return invite.LogMailer{}
	}
	return smtp.New(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Sender)
}
