package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Resolution string

const (
	ResolutionOriginal Resolution = "original"
	Resolution360p     Resolution = "360p"
	Resolution480p     Resolution = "480p"
	Resolution720p     Resolution = "720p"
	Resolution1080p    Resolution = "1080p"
)

// DefaultResolution is used when an upload does not name a target.
const DefaultResolution = Resolution720p

var resolutions = []Resolution{
	ResolutionOriginal,
	Resolution360p,
	Resolution480p,
	Resolution720p,
	Resolution1080p,
}

// Resolutions lists every accepted target in display order.
func Resolutions() []Resolution {
	out := make([]Resolution, len(resolutions))
	copy(out, resolutions)
	return out
}

func (r Resolution) Valid() bool {
	for _, known := range resolutions {
		if r == known {
			return true
		}
	}
	return false
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown target resolution %q", s)
	}
	return r, nil
}

// EncodeParams are the concrete encoder settings for one rendition.
// MaxBitrate and BufferSize are in kbit/s.
type EncodeParams struct {
	Width      int
	Height     int
	MaxBitrate int
	BufferSize int
	// Scale is false for the original target, where the source frame is kept.
	Scale bool
}

func (p EncodeParams) Size() string { return fmt.Sprintf("%dx%d", p.Width, p.Height) }

func (p EncodeParams) MaxRateArg() string { return fmt.Sprintf("%dk", p.MaxBitrate) }

func (p EncodeParams) BufSizeArg() string { return fmt.Sprintf("%dk", p.BufferSize) }

// Source describes an uploaded file. Name is the storage-relative path,
// Path its location on disk.
type Source struct {
	Name string
	Path string
	Size int64
}

// BaseName is the file name without directory or extension; it names the
// staging and published directories.
func (s Source) BaseName() string {
	base := filepath.Base(filepath.FromSlash(s.Name))
	if s.Name == "" {
		base = filepath.Base(s.Path)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ext is the lower-cased extension without the dot.
func (s Source) Ext() string {
	name := s.Name
	if name == "" {
		name = s.Path
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// StreamDirName is the directory holding one source's rendition, both in
// staging and under the public root.
func StreamDirName(source Source) string {
	return "stream_" + source.BaseName()
}

const (
	PlaylistName   = "playlist.m3u8"
	SegmentPattern = "segment_%03d.ts"
)
