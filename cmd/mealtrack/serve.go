package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	adapthttp "mealtrack/internal/adapter/http"
	"mealtrack/internal/app"
	"mealtrack/internal/config"
	"mealtrack/internal/metrics"
	"mealtrack/internal/recognition"
)

const sessionPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API and the single page frontend.

Examples:
  # Serve with a config file
  mealtrack serve --config mealtrack.yaml

  # Serve against postgres
  MEALTRACK_STORE_DRIVER=postgres MEALTRACK_STORE_DSN=postgres://... mealtrack serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	invoker, err := newInvoker(cfg.Recognition, log, m)
	if err != nil {
		return err
	}

	authSvc := app.NewAuthService(st.repo, st.sessions)
	budget := app.NewBudgetService(st.repo)
	ledger := app.NewMealLedger(st.repo, log.Named("ledger"), m)
	resolver := app.NewResolver(st.repo, cfg.Resolver.Concurrency, log.Named("resolver"), m)

	opts := adapthttp.Options{
		WebDir:           cfg.Server.WebDir,
		UploadDir:        cfg.Server.UploadDir,
		MaxUploadBytes:   cfg.Server.MaxUploadBytes,
		CORSOrigins:      cfg.Server.CORSOrigins,
		TrustForwardAuth: cfg.Server.TrustForwardAuth,
		Logger:           log.Named("http"),
		Metrics:          m,
		Gatherer:         reg,
	}
	if cfg.OIDC.Enabled() {
		oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			return err
		}
		opts.OIDC = oidcCfg
		log.Info("sso enabled", zap.String("issuer", cfg.OIDC.Issuer))
	}

	srv := adapthttp.New(adapthttp.Services{
		Auth:      authSvc,
		Profile:   app.NewProfileService(st.repo),
		Budget:    budget,
		Scan:      app.NewScanService(invoker, resolver, log.Named("scan")),
		Ledger:    ledger,
		Remaining: app.NewRemainingService(ledger, budget, st.repo),
		History:   app.NewHistoryService(ledger, budget),
		Catalog:   app.NewCatalogService(st.repo, log.Named("catalog")),
	}, opts)

	if cfg.Server.DisableAuth {
		dev, err := authSvc.ValidateForwardAuth(ctx, cfg.Server.DevUser)
		if err != nil {
			return fmt.Errorf("provision dev user: %w", err)
		}
		srv = srv.WithoutAuth(dev)
		log.Warn("authentication disabled", zap.String("user", dev.Username))
	}

	if cfg.Server.TrustForwardAuth {
		log.Info("trusting Remote-User header from the reverse proxy")
	}

	go purgeSessions(ctx, authSvc, log)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Driver))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newInvoker(cfg config.RecognitionConfig, log *zap.Logger, m *metrics.Metrics) (*recognition.Invoker, error) {
	return recognition.New(recognition.Config{
		Command:        cfg.Command,
		Args:           cfg.Args,
		Timeout:        cfg.Timeout,
		MaxConcurrent:  cfg.MaxConcurrent,
		MaxOutputBytes: int64(cfg.MaxOutputBytes),
	}, recognition.WithLogger(log.Named("recognition")), recognition.WithMetrics(m))
}

func purgeSessions(ctx context.Context, auth *app.AuthService, log *zap.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := auth.PurgeExpired(ctx); err != nil {
				log.Warn("purge expired sessions", zap.Error(err))
			}
		}
	}
}
