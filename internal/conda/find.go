package conda

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"condahooks/internal/hookerr"
)

const (
	mambaName = "mamba"
	condaName = "conda"
)

// FindExecutable locates the package-manager executable. searchPath is a
// PATH-style list; when empty $PATH is used. mamba is tried first when
// preferMamba is set, then conda. The result is absolute with symlinks
// resolved.
func FindExecutable(searchPath string, preferMamba bool, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if searchPath == "" {
		searchPath = os.Getenv("PATH")
	}
	dirs := filepath.SplitList(searchPath)

	if preferMamba {
		if path, ok := lookIn(dirs, mambaName); ok {
			logger.Info("found mamba", "path", path)
			return path, nil
		}
		logger.Warn("did not find mamba, try to find conda (which might be slower)")
	}
	if path, ok := lookIn(dirs, condaName); ok {
		logger.Info("found conda", "path", path)
		return path, nil
	}
	return "", hookerr.NoCondaExecutable()
}

func lookIn(dirs []string, name string) (string, bool) {
	for _, dir := range dirs {
		if dir == "" {
			dir = "."
		}
		for _, candidate := range candidates(filepath.Join(dir, name)) {
			if !isExecutable(candidate) {
				continue
			}
			abs, err := filepath.Abs(candidate)
			if err != nil {
				continue
			}
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				abs = resolved
			}
			return abs, true
		}
	}
	return "", false
}

func candidates(base string) []string {
	if runtime.GOOS != "windows" {
		return []string{base}
	}
	return []string{base + ".exe", base + ".bat", base + ".cmd", base}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
