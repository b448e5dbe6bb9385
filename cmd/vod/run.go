package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/app"
	"github.com/romariotrain/hls-vod/internal/config"
	"github.com/romariotrain/hls-vod/internal/video/httpapi"
)

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	stack, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if cfg.RelayEnabled() {
		relay, producer, err := app.NewRelay(cfg, stack.Outbox, logger)
		if err != nil {
			return err
		}
		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			if err := relay.Start(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("outbox relay stopped")
			}
		}()
		defer func() {
			stopRelay()
			<-relayDone
			if err := producer.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
	} else {
		logger.Info().Msg("KAFKA_BROKERS is empty, outbox relay disabled")
	}

	intake := httpapi.NewIntake(cfg.UploadRoot, cfg.UploadTempDir, cfg.MaxUploadBytes)
	h := httpapi.New(stack.Service, intake, logger)
	router := httpapi.NewRouter(h)

	// No write timeout: an upload response is sent only after the encode finishes.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}
