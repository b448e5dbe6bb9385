package transcode

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/romariotrain/hls-vod/internal/media"
)

const (
	defaultThreads = 2
	segmentSeconds = 6
)

// BuildArgs returns the ffmpeg arguments that encode input into a VOD HLS
// rendition inside outDir. Scaled targets are letterboxed or pillarboxed so
// the output frame is exactly params.Width x params.Height.
func BuildArgs(input, outDir string, params media.EncodeParams, threads int) []string {
	if threads <= 0 {
		threads = defaultThreads
	}
	args := []string{
		"-y",
		"-i", input,
		"-threads", strconv.Itoa(threads),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "main",
		"-level", "3.1",
	}

	if params.Scale {
		args = append(args, "-vf", ScaleFilter(params.Width, params.Height))
	}

	args = append(args,
		"-maxrate", params.MaxRateArg(),
		"-bufsize", params.BufSizeArg(),
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-ar", "44100",
	)

	args = append(args,
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-hls_flags", "independent_segments",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", filepath.Join(outDir, media.SegmentPattern),
		"-f", "hls",
		filepath.Join(outDir, media.PlaylistName),
	)
	return args
}

// ScaleFilter fits the source into w x h keeping its aspect ratio and pads the
// remainder with black.
func ScaleFilter(w, h int) string {
	return fmt.Sprintf(
		"scale=w=%d:h=%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black",
		w, h, w, h,
	)
}
