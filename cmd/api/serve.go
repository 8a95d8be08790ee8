package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moodsun/api/internal/account"
	"moodsun/api/internal/app"
	"moodsun/api/internal/config"
	"moodsun/api/internal/email"
	"moodsun/api/internal/engine"
	"moodsun/api/internal/images"
	"moodsun/api/internal/logging"
	"moodsun/api/internal/session"
	"moodsun/api/internal/store"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	backend, err := store.OpenBackend(ctx, cfg.StoreDriver, cfg.MongoURL, cfg.MongoDatabase, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() { _ = backend.Close(context.Background()) }()
	log.Info("storage ready", zap.String("driver", cfg.StoreDriver))

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer sessions.Close()

	imageStore, err := openImages(ctx, cfg, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.New(backend,
		engine.WithLogger(log),
		engine.WithMetrics(engine.NewMetrics(registry)),
	)
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Warn("SMTP not configured, password reset mail will fail")
	}
	accounts := account.NewService(backend.Accounts(), eng, sessions, mailer, imageStore, account.Config{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		ResetTTL:   cfg.ResetTTL,
		PublicURL:  cfg.PublicURL,
	}, log)

	service := app.NewService(app.Deps{
		Engine:   eng,
		Accounts: accounts,
		Images:   imageStore,
		Checks:   map[string]app.Pinger{"storage": backend, "redis": sessions},
		Gatherer: registry,
		Log:      log,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("MoodSun API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	return nil
}

func openImages(ctx context.Context, cfg config.Config, log *zap.Logger) (images.Store, error) {
	if strings.TrimSpace(cfg.S3Endpoint) == "" {
		log.Warn("S3 not configured, image uploads are disabled")
		return images.Disabled{}, nil
	}
	s3, err := images.NewS3Store(ctx, images.S3Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return s3, nil
}
