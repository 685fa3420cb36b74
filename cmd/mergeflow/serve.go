package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/alecgard/mergeflow/internal/api"
	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/auth"
	"github.com/alecgard/mergeflow/internal/document"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/metrics"
	"github.com/alecgard/mergeflow/internal/objects"
	"github.com/alecgard/mergeflow/internal/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mergeflow API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     "mergeflow@" + version,
		}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
		slog.Info("sentry enabled", "environment", cfg.Sentry.Environment)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackend(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer be.Close()

	m := metrics.New()
	var db api.Pinger
	if be.pool != nil {
		m.RegisterDBPoolCollector(poolStats(be.pool))
		db = be.pool
	}

	collector := audit.NewCollector(be.audit, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
	collector.OnFlush = m.ObserveAuditFlush
	go collector.Start(ctx)

	invites := invite.NewService(newMailer(cfg.Mail), m)

	// Leave the interface nil when storage is off so the service reports it.
	var objs document.ObjectStore
	if cfg.Storage.Bucket != "" {
		s3store, err := objects.New(ctx, objects.Config{
			Bucket:        cfg.Storage.Bucket,
			Region:        cfg.Storage.Region,
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			PresignTTL:    cfg.Storage.PresignTTL,
		})
		if err != nil {
			return err
		}
		objs = s3store
		slog.Info("object storage enabled", "bucket", cfg.Storage.Bucket)
	}

	teamLimiter := ratelimit.New(cfg.Invites.TeamRate, cfg.Invites.Window)
	clientLimiter := ratelimit.New(cfg.Invites.ClientRate, cfg.Invites.Window)
	go sweep(ctx, cfg.Invites.Window, clientLimiter, teamLimiter)

	guard, err := auth.NewGuard(cfg.Auth.AdminKeyHash)
	if err != nil {
		return err
	}
	if !guard.Enabled() {
		slog.Warn("no admin key hash configured; tenant-wide routes are open")
	}

	svc := newServices(be.store, invites, objs, teamLimiter, m.Recorder(collector), cfg.Documents.MaxTags)

	router := api.NewRouter(api.RouterDeps{
		Teams:          svc.teams,
		Members:        svc.members,
		Groups:         svc.groups,
		Documents:      svc.documents,
		Invites:        invites,
		Activity:       be.activity,
		Metrics:        m,
		Guard:          guard,
		ClientLimiter:  clientLimiter,
		DB:             db,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		InvitationLink: cfg.InvitationLink(),
		Sentry:         cfg.Sentry.DSN != "",
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "store", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
	case err := <-errCh:
		slog.Error("server error", "error", err)
		collector.Stop()
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	collector.Stop()
	return err
}

// sweep drops idle limiter buckets once per window.
func sweep(ctx context.Context, every time.Duration, limiters ...*ratelimit.Limiter) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, l := range limiters {
				if n := l.Sweep(); n > 0 {
					slog.Debug("swept idle rate limit buckets", "count", n)
				}
			}
		}
	}
}
