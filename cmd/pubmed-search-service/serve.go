package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search-service/internal/config"
	"github.com/helixir/pubmed-search-service/internal/eutils"
	"github.com/helixir/pubmed-search-service/internal/observability"
	httpserver "github.com/helixir/pubmed-search-service/internal/server/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(credentialFlags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().Msg("pubmed-search-service starting")

	for _, warning := range cfg.Warnings {
		logger.Warn().Msg(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("pubmedsearch")
	}

	client := eutils.New(eutils.Config{
		BaseURL:         cfg.PubMed.BaseURL,
		APIKey:          cfg.PubMed.APIKey,
		Email:           cfg.PubMed.Email,
		Timeout:         cfg.PubMed.Timeout,
		RetryDelay:      cfg.PubMed.RetryDelay,
		FullAuthorLists: cfg.PubMed.FullAuthorLists,
		Logger:          logger,
		Metrics:         metrics,
	})
	defer client.Close()

	tier := client.Tier()
	logger.Info().
		Bool("api_key_configured", cfg.PubMed.APIKey != "").
		Bool("email_configured", cfg.PubMed.Email != "").
		Int("requests_per_second", tier.RequestsPerSecond).
		Int("max_results", tier.MaxResults).
		Int("max_link_results", tier.MaxLinkResults).
		Int("batch_chunk_size", tier.ChunkSize).
		Msg("rate tier selected")

	srv := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, client, logger, metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().Str("address", cfg.Server.HTTPAddress()).Msg("pubmed-search-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("pubmed-search-service shutdown complete")
	return nil
}
