package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
)

const (
	DefaultTimeout = 2 * time.Hour

	stderrTailBytes = 64 * 1024
	maxPendingLine  = 4 * 1024
	waitDelay       = 5 * time.Second
)

type Config struct {
	// Binary is the ffmpeg executable name or path.
	Binary      string
	SearchPath  string
	StagingRoot string
	Timeout     time.Duration
	Threads     int
	Logger      zerolog.Logger
}

// Output is a complete HLS rendition left in a staging directory.
type Output struct {
	Dir      string
	Playlist string
}

type Transcoder struct {
	binary      string
	searchPath  string
	stagingRoot string
	timeout     time.Duration
	threads     int
	logger      zerolog.Logger
}

func New(cfg Config) *Transcoder {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Threads <= 0 {
		cfg.Threads = defaultThreads
	}
	return &Transcoder{
		binary:      cfg.Binary,
		searchPath:  cfg.SearchPath,
		stagingRoot: cfg.StagingRoot,
		timeout:     cfg.Timeout,
		threads:     cfg.Threads,
		logger:      cfg.Logger.With().Str("component", "transcoder").Logger(),
	}
}

// StagingDir is the private working directory for one source's rendition.
func (t *Transcoder) StagingDir(src media.Source) string {
	return filepath.Join(t.stagingRoot, media.StreamDirName(src))
}

// Transcode encodes sourcePath into an HLS rendition under stagingDir. On any
// failure stagingDir is removed; only a successful encode leaves it in place.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath string, params media.EncodeParams, stagingDir string) (*Output, error) {
	bin, err := media.LookTool(t.binary, t.searchPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrEncodeFailed, err)
	}

	// a leftover directory belongs to an attempt that died before cleanup
	if err := os.RemoveAll(stagingDir); err != nil {
		return nil, fmt.Errorf("%w: clear staging: %v", media.ErrEncodeFailed, err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create staging: %v", media.ErrEncodeFailed, err)
	}

	out, err := t.run(ctx, bin, sourcePath, params, stagingDir)
	if err != nil {
		t.cleanup(stagingDir)
		return nil, err
	}
	return out, nil
}

func (t *Transcoder) run(ctx context.Context, bin, sourcePath string, params media.EncodeParams, stagingDir string) (*Output, error) {
	args := BuildArgs(sourcePath, stagingDir, params, t.threads)
	logger := t.logger.With().Str("staging", filepath.Base(stagingDir)).Logger()

	encodeCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(encodeCtx, bin, args...)
	cmd.Env = media.ToolEnv(t.searchPath)
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(stderr, newLineLogger(logger))

	logger.Info().
		Str("size", params.Size()).
		Str("maxrate", params.MaxRateArg()).
		Dur("timeout", t.timeout).
		Msg("ffmpeg started")
	logger.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("ffmpeg command")

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == nil && errors.Is(encodeCtx.Err(), context.DeadlineExceeded) {
			logger.Error().Dur("elapsed", elapsed).Msg("ffmpeg timed out, process killed")
			return nil, fmt.Errorf("%w after %s", media.ErrEncodeTimeout, t.timeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Error().Err(ctxErr).Msg("ffmpeg cancelled")
			return nil, fmt.Errorf("%w: %w", media.ErrEncodeFailed, ctxErr)
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		encErr := media.NewEncodeError(code, stderr.String(), err, sourcePath, stagingDir, t.stagingRoot)
		logger.Error().Int("exit_code", code).Str("stderr", encErr.Stderr).Msg("ffmpeg failed")
		return nil, encErr
	}

	playlist := filepath.Join(stagingDir, media.PlaylistName)
	if _, statErr := os.Stat(playlist); statErr != nil {
		return nil, media.NewEncodeError(0, "ffmpeg exited cleanly without writing "+media.PlaylistName, statErr)
	}

	logger.Info().Dur("elapsed", elapsed).Msg("ffmpeg completed")
	return &Output{Dir: stagingDir, Playlist: playlist}, nil
}

func (t *Transcoder) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		t.logger.Error().Err(err).Str("staging", filepath.Base(dir)).Msg("failed to remove staging directory")
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= b.limit {
		b.buf = append(b.buf[:0], p[len(p)-b.limit:]...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string { return string(b.buf) }

// lineLogger forwards encoder output to the logger at trace level, one
// event per line.
type lineLogger struct {
	logger  zerolog.Logger
	pending []byte
}

func newLineLogger(logger zerolog.Logger) *lineLogger {
	return &lineLogger{logger: logger}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	total := len(p)
	data := append(w.pending, p...)
	for {
		idx := bytes.IndexAny(data, "\r\n")
		if idx == -1 {
			break
		}
		line := bytes.TrimSpace(data[:idx])
		data = data[idx+1:]
		if len(line) > 0 {
			w.logger.Trace().Str("stream", "stderr").Msg(string(line))
		}
	}
	if len(data) > maxPendingLine {
		w.logger.Trace().Str("stream", "stderr").Msg(string(bytes.TrimSpace(data)))
		data = data[:0]
	}
	w.pending = append(w.pending[:0], data...)
	return total, nil
}
