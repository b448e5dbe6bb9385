package httpapi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

var unsafeFilenameChars = regexp.MustCompile(`[^-\w.]`)

// Intake stores uploaded sources under root/<YY>/.
type Intake struct {
	root     string
	tempDir  string
	maxBytes int64
	clock    func() time.Time
}

func NewIntake(root, tempDir string, maxBytes int64) *Intake {
	return &Intake{
		root:     root,
		tempDir:  tempDir,
		maxBytes: maxBytes,
		clock:    time.Now,
	}
}

// ValidFilename keeps the base name of an uploaded file and strips anything
// that is not a letter, digit, dash, underscore or dot. Spaces become
// underscores.
func ValidFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := strings.TrimSpace(path.Base(name))
	base = strings.ReplaceAll(base, " ", "_")
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	if base == "" || base == "." || base == ".." || strings.Trim(base, ".") == "" {
		return ""
	}
	return base
}

// Store copies r into the upload tree. Uploads larger than the ceiling are
// rejected with media.ErrFileTooLarge before anything is kept.
func (in *Intake) Store(filename string, r io.Reader) (media.Source, error) {
	clean := ValidFilename(filename)
	if clean == "" {
		return media.Source{}, fmt.Errorf("%w: invalid upload filename %q", models.ErrInvalidArgument, filename)
	}

	tmp, err := os.CreateTemp(in.tempDir, "upload-*")
	if err != nil {
		return media.Source{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	reader := r
	if in.maxBytes > 0 {
		reader = io.LimitReader(r, in.maxBytes+1)
	}
	size, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err != nil {
		return media.Source{}, fmt.Errorf("receive upload: %w", err)
	}
	if closeErr != nil {
		return media.Source{}, fmt.Errorf("receive upload: %w", closeErr)
	}
	if in.maxBytes > 0 && size > in.maxBytes {
		return media.Source{}, fmt.Errorf("%w: upload exceeds %d bytes", media.ErrFileTooLarge, in.maxBytes)
	}

	partition := in.clock().Format("06")
	dir := filepath.Join(in.root, partition)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return media.Source{}, fmt.Errorf("create upload dir: %w", err)
	}

	dest, name, err := availableName(dir, clean)
	if err != nil {
		return media.Source{}, err
	}
	if err := moveFile(tmpName, dest); err != nil {
		return media.Source{}, fmt.Errorf("store upload: %w", err)
	}
	if err := os.Chmod(dest, 0o644); err != nil {
		_ = os.Remove(dest)
		return media.Source{}, fmt.Errorf("store upload: %w", err)
	}

	return media.Source{
		Name: path.Join(partition, name),
		Path: dest,
		Size: size,
	}, nil
}

// Remove deletes a stored source. Used when its record could not be created.
func (in *Intake) Remove(src media.Source) error {
	if src.Path == "" {
		return nil
	}
	if err := os.Remove(src.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// availableName returns a free path in dir for name, appending a short
// random suffix before the extension on collision.
func availableName(dir, name string) (string, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 0; i < 10; i++ {
		full := filepath.Join(dir, candidate)
		if _, err := os.Lstat(full); errors.Is(err, os.ErrNotExist) {
			return full, candidate, nil
		} else if err != nil {
			return "", "", err
		}
		candidate = stem + "_" + uuid.NewString()[:7] + ext
	}
	return "", "", fmt.Errorf("no free name for %s", name)
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
