package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/hls-vod/internal/media"
)

const (
	dirMode  fs.FileMode = 0o755
	fileMode fs.FileMode = 0o644

	processedDir = "processed"
)

type Config struct {
	PublicRoot string
	BaseURL    string
	Logger     zerolog.Logger
}

// Published describes a rendition exposed under the public media root.
type Published struct {
	URL string
	// Dir is the absolute directory holding the playlist and segments.
	Dir string
	// RelativePath is the playlist path relative to the public root, slash separated.
	RelativePath string
}

type Publisher struct {
	publicRoot string
	baseURL    string
	logger     zerolog.Logger
	clock      func() time.Time
}

func New(cfg Config) *Publisher {
	return &Publisher{
		publicRoot: cfg.PublicRoot,
		baseURL:    cfg.BaseURL,
		logger:     cfg.Logger.With().Str("component", "publisher").Logger(),
		clock:      time.Now,
	}
}

// RelativeDir returns processed/<YY>/stream_<basename> for a source processed at t.
func RelativeDir(src media.Source, t time.Time) string {
	return path.Join(processedDir, t.Format("06"), media.StreamDirName(src))
}

// Publish moves the staged rendition under the public root and returns its
// playlist URL. The public path only ever observes a complete directory: the
// tree is assembled under a hidden sibling name and renamed into place last.
// An existing rendition at the same path is replaced. The staging directory
// is consumed on success and removed on failure.
func (p *Publisher) Publish(ctx context.Context, stagingDir string, src media.Source) (*Published, error) {
	pub, err := p.publish(ctx, stagingDir, src)
	if err != nil {
		if rmErr := os.RemoveAll(stagingDir); rmErr != nil {
			p.logger.Error().Err(rmErr).Msg("failed to remove staging directory after publish failure")
		}
		return nil, fmt.Errorf("%w: %v", media.ErrPublishFailed, err)
	}
	return pub, nil
}

func (p *Publisher) publish(ctx context.Context, stagingDir string, src media.Source) (*Published, error) {
	if strings.TrimSpace(p.publicRoot) == "" {
		return nil, errors.New("public media root is not configured")
	}
	if _, err := os.Stat(filepath.Join(stagingDir, media.PlaylistName)); err != nil {
		return nil, fmt.Errorf("staged playlist: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := RelativeDir(src, p.clock())
	dest := filepath.Join(p.publicRoot, filepath.FromSlash(rel))
	parent := filepath.Dir(dest)
	if err := mkdirAllMode(parent, dirMode); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", rel, err)
	}

	if err := makeWorldReadable(stagingDir); err != nil {
		return nil, fmt.Errorf("set permissions: %w", err)
	}

	suffix := uuid.NewString()[:8]
	incoming := filepath.Join(parent, "."+filepath.Base(dest)+".incoming-"+suffix)
	if err := moveDirectory(stagingDir, incoming); err != nil {
		_ = os.RemoveAll(incoming)
		return nil, fmt.Errorf("stage into public root: %w", err)
	}

	if err := swapIntoPlace(incoming, dest, suffix); err != nil {
		_ = os.RemoveAll(incoming)
		return nil, err
	}

	relPlaylist := path.Join(rel, media.PlaylistName)
	pub := &Published{
		URL:          JoinURL(p.baseURL, relPlaylist),
		Dir:          dest,
		RelativePath: relPlaylist,
	}
	p.logger.Info().Str("path", relPlaylist).Str("url", pub.URL).Msg("rendition published")
	return pub, nil
}

// Unpublish removes a previously published rendition directory.
func (p *Publisher) Unpublish(pub *Published) error {
	if pub == nil || pub.Dir == "" {
		return nil
	}
	root, err := filepath.Abs(p.publicRoot)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(pub.Dir)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s outside public root", pub.RelativePath)
	}
	return os.RemoveAll(dir)
}

// swapIntoPlace renames incoming to dest, moving any existing dest aside
// first and restoring it if the final rename fails.
func swapIntoPlace(incoming, dest, suffix string) error {
	var previous string
	if _, err := os.Stat(dest); err == nil {
		previous = filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".previous-"+suffix)
		if err := os.Rename(dest, previous); err != nil {
			return fmt.Errorf("move previous rendition aside: %w", err)
		}
	}
	if err := os.Rename(incoming, dest); err != nil {
		if previous != "" {
			_ = os.Rename(previous, dest)
		}
		return fmt.Errorf("rename into place: %w", err)
	}
	if previous != "" {
		_ = os.RemoveAll(previous)
	}
	return nil
}

// moveDirectory renames src to dst, copying across filesystems when a rename
// is not possible.
func moveDirectory(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyDirectory(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyDirectory(src, dst string) error {
	return filepath.WalkDir(src, func(current string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, current)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, dirMode)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("symlinks not supported: %s", rel)
		}
		in, err := os.Open(current)
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
		if err != nil {
			in.Close()
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			in.Close()
			return err
		}
		if err := out.Sync(); err != nil {
			out.Close()
			in.Close()
			return err
		}
		if err := out.Close(); err != nil {
			in.Close()
			return err
		}
		return in.Close()
	})
}

// makeWorldReadable sets 0755 on directories and 0644 on files so a separate
// web server process can serve the tree.
func makeWorldReadable(root string) error {
	return filepath.WalkDir(root, func(current string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.Chmod(current, dirMode)
		}
		return os.Chmod(current, fileMode)
	})
}

func mkdirAllMode(dir string, mode fs.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return err
	}
	// MkdirAll is subject to the umask
	return os.Chmod(dir, mode)
}

// JoinURL joins base and a slash-separated relative path with exactly one
// slash between them.
func JoinURL(base string, parts ...string) string {
	trimmed := strings.TrimRight(base, "/")
	addition := path.Join(parts...)
	if addition == "." {
		addition = ""
	}
	if addition == "" {
		return trimmed
	}
	if trimmed == "" {
		return "/" + strings.TrimLeft(addition, "/")
	}
	return trimmed + "/" + strings.TrimLeft(addition, "/")
}
