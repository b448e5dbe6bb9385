package media

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultToolSearchPath is prepended to PATH when resolving ffmpeg and ffprobe.
const DefaultToolSearchPath = "/usr/local/bin:/usr/bin:/bin"

// LookTool resolves name against searchPath first and the process PATH second.
// Absolute or relative paths containing a separator are returned as-is.
func LookTool(name, searchPath string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		return name, nil
	}
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", name, err)
	}
	return path, nil
}

// ToolEnv returns the current environment with searchPath prepended to PATH.
func ToolEnv(searchPath string) []string {
	env := os.Environ()
	if searchPath == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			kv = "PATH=" + searchPath + string(filepath.ListSeparator) + strings.TrimPrefix(kv, "PATH=")
			found = true
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+searchPath)
	}
	return out
}
