package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
)

const defaultTimeout = 30 * time.Second

// Config configures a Prober.
type Config struct {
	// Binary is the ffprobe executable name or path.
	Binary     string
	SearchPath string
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Prober extracts container duration and video dimensions with ffprobe.
type Prober struct {
	binary     string
	searchPath string
	timeout    time.Duration
	logger     zerolog.Logger
}

func New(cfg Config) *Prober {
	if cfg.Binary == "" {
		cfg.Binary = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Prober{
		binary:     cfg.Binary,
		searchPath: cfg.SearchPath,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger.With().Str("component", "prober").Logger(),
	}
}

// Duration returns the container duration of path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return ParseDuration(out)
}

// Dimensions returns the width and height of the first video stream of path.
func (p *Prober) Dimensions(ctx context.Context, path string) (int, int, error) {
	out, err := p.run(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return 0, 0, err
	}
	return ParseDimensions(out)
}

func (p *Prober) run(ctx context.Context, args ...string) ([]byte, error) {
	bin, err := media.LookTool(p.binary, p.searchPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrProbeFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("running ffprobe")

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = media.ToolEnv(p.searchPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: timed out after %s", media.ErrProbeFailed, p.timeout)
		}
		return nil, fmt.Errorf("%w: %v: %s", media.ErrProbeFailed, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ParseDuration parses the single scalar ffprobe prints for format=duration.
func ParseDuration(out []byte) (float64, error) {
	s := strings.TrimSpace(string(out))
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %v", media.ErrProbeFailed, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", media.ErrProbeFailed, s)
	}
	return d, nil
}

// ParseDimensions parses the "width,height" pair ffprobe prints in csv mode.
func ParseDimensions(out []byte) (int, int, error) {
	s := strings.TrimSpace(string(out))
	// some containers report one line per stream; only the first matters
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	parts := strings.Split(strings.TrimSuffix(s, ","), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: parse dimensions %q", media.ErrProbeFailed, s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: parse width %q: %v", media.ErrProbeFailed, parts[0], err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: parse height %q: %v", media.ErrProbeFailed, parts[1], err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid dimensions %dx%d", media.ErrProbeFailed, w, h)
	}
	return w, h, nil
}
