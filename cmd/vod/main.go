package main

import (
	"context"
	"fmt"
	"os"

	"github.com/romariotrain/hls-vod/internal/app"
	"github.com/romariotrain/hls-vod/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

	code := app.Run("vod", logger, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	})
	os.Exit(code)
}
