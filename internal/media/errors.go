package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrDurationExceeded  = errors.New("duration exceeded")
	ErrProbeFailed       = errors.New("probe failed")
	ErrEncodeFailed      = errors.New("encode failed")
	ErrEncodeTimeout     = errors.New("encode timed out")
	ErrPublishFailed     = errors.New("publish failed")
	ErrCatalogSyncFailed = errors.New("catalog sync failed")
)

// IsValidation reports whether err rejects the upload before any processing.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrDurationExceeded)
}

// stderrExcerptLimit caps how much encoder output is carried on an EncodeError.
const stderrExcerptLimit = 2048

// EncodeError is returned when the encoder exits non-zero. Stderr holds the tail
// of the encoder's diagnostic output with absolute paths already redacted.
type EncodeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func NewEncodeError(exitCode int, stderr string, cause error, paths ...string) *EncodeError {
	return &EncodeError{
		ExitCode: exitCode,
		Stderr:   Excerpt(Redact(stderr, paths...), stderrExcerptLimit),
		Err:      cause,
	}
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("encode failed: exit code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *EncodeError) Is(target error) bool { return target == ErrEncodeFailed }

func (e *EncodeError) Unwrap() error { return e.Err }

// Redact replaces every occurrence of the given absolute paths with their base
// names, longest first so nested paths collapse correctly.
func Redact(s string, paths ...string) string {
	sorted := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			sorted = append(sorted, filepath.Clean(p))
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for _, p := range sorted {
		s = strings.ReplaceAll(s, p, filepath.Base(p))
	}
	return s
}

// Excerpt keeps the last limit bytes of s, trimmed to whole lines where possible.
func Excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	tail := s[len(s)-limit:]
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}
