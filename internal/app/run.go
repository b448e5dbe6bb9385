package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

// shutdownGrace bounds how long Run waits for the runner to return after a
// signal before exiting anyway.
const shutdownGrace = 30 * time.Second

// Run executes run until it returns or the process receives SIGINT/SIGTERM,
// and converts the outcome into a process exit code.
func Run(serviceName string, logger zerolog.Logger, run Runner) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runWithContext(ctx, serviceName, logger, run, shutdownGrace)
}

func runWithContext(ctx context.Context, serviceName string, logger zerolog.Logger, run Runner, grace time.Duration) int {
	logger = logger.With().Str("service", serviceName).Logger()
	logger.Info().Msg("starting")

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error().Err(err).Msg("shutdown failed")
				return 1
			}
		case <-time.After(grace):
			logger.Warn().Dur("grace", grace).Msg("runner did not stop in time")
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("failed")
			return 1
		}
		logger.Info().Msg("stopped")
		return 0
	}
}
