// Package fakebin writes throwaway shell scripts that stand in for ffmpeg and
// ffprobe in tests.
package fakebin

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
)

// Write creates an executable /bin/sh script called name in a fresh temp dir
// and returns its absolute path. The test is skipped on platforms without sh.
func Write(t testing.TB, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}
	return path
}

// Echo returns a script body that prints out and exits with code.
func Echo(out string, code int) string {
	return "printf '%s' '" + out + "'\nexit " + strconv.Itoa(code)
}
