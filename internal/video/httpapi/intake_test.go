package httpapi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/hls-vod/internal/media"
	"github.com/romariotrain/hls-vod/internal/video/models"
)

func TestValidFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"my clip (final).mov", "my_clip_final.mov"},
		{"../../etc/passwd.mp4", "passwd.mp4"},
		{`C:\Users\me\video.webm`, "video.webm"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidFilename(tt.in), tt.in)
	}
}

func TestIntake_StorePartitionsByYear(t *testing.T) {
	root := t.TempDir()
	in := NewIntake(root, t.TempDir(), 100)
	in.clock = func() time.Time { return fixedTime }

	src, err := in.Store("clip.mp4", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "26/clip.mp4", src.Name)
	assert.Equal(t, filepath.Join(root, "26", "clip.mp4"), src.Path)
	assert.Equal(t, int64(3), src.Size)
	assert.Equal(t, "clip", src.BaseName())

	info, err := os.Stat(src.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestIntake_StoreAvoidsCollisions(t *testing.T) {
	in := NewIntake(t.TempDir(), t.TempDir(), 0)
	in.clock = func() time.Time { return fixedTime }

	first, err := in.Store("clip.mp4", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := in.Store("clip.mp4", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.True(t, strings.HasPrefix(filepath.Base(second.Path), "clip_"))
	assert.Equal(t, ".mp4", filepath.Ext(second.Path))

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestIntake_StoreRejects(t *testing.T) {
	in := NewIntake(t.TempDir(), t.TempDir(), 4)

	_, err := in.Store("clip.mp4", strings.NewReader("12345"))
	require.ErrorIs(t, err, media.ErrFileTooLarge)

	_, err = in.Store("clip.mp4", strings.NewReader("1234"))
	require.NoError(t, err)

	_, err = in.Store("..", strings.NewReader("x"))
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestIntake_Remove(t *testing.T) {
	in := NewIntake(t.TempDir(), t.TempDir(), 0)
	src, err := in.Store("clip.mp4", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, in.Remove(src))
	assert.NoFileExists(t, src.Path)
	require.NoError(t, in.Remove(src))
}
