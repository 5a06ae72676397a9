package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/shelf/internal/config"
	"github.com/dukerupert/shelf/internal/database"
	"github.com/dukerupert/shelf/internal/email"
	"github.com/dukerupert/shelf/internal/logging"
	"github.com/dukerupert/shelf/internal/server"
	"github.com/dukerupert/shelf/internal/sweep"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shelf: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var sender email.Sender
	switch cfg.MailDriver {
	case config.MailDriverLog:
		sender = email.NewLogSender(logger.With("component", "email"))
	default:
		sender = email.NewClient(cfg.PostmarkToken, cfg.FromEmail)
	}

	srv := server.New(db, server.Config{
		BaseURL:      cfg.BaseURL,
		CookieSecure: cfg.CookieSecure,
		Mailer:       email.NewMailer(sender),
		Registerer:   prometheus.DefaultRegisterer,
		Gatherer:     prometheus.DefaultGatherer,
	}, logger)

	sweeper := sweep.New(db, srv.RateLimiter(), srv.Metrics(), logger.With("component", "sweep"))
	go sweeper.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("shelf running", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "mail_driver", cfg.MailDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
