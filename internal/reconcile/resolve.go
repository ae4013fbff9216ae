package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"condahooks/internal/envspec"
	"condahooks/internal/hookerr"
)

// ResolveFiles returns the absolute env file paths a run operates on.
//
// Explicit files come first and each must be an existing regular file. Glob
// matches follow (doublestar syntax, ** allowed), sorted per pattern, with
// directories and already-listed files skipped. When neither yields a file
// the default filenames are probed in dir. Relative inputs are taken
// relative to dir, or the working directory when dir is empty.
func ResolveFiles(files, globs []string, dir string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			resolved = append(resolved, p)
		}
	}

	for _, f := range files {
		abs, err := absolute(dir, f)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if os.IsNotExist(err) {
			return nil, hookerr.EnvFileNotFound(f)
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		if !info.Mode().IsRegular() {
			return nil, hookerr.NotAFile(f)
		}
		add(abs)
	}

	for _, pattern := range globs {
		matches, err := globFiles(dir, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}

	if len(resolved) > 0 {
		return resolved, nil
	}

	path, err := envspec.FindDefault(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return []string{abs}, nil
}

// globFiles expands one pattern to sorted absolute regular-file paths.
func globFiles(dir, pattern string) ([]string, error) {
	absPattern, err := absolute(dir, pattern)
	if err != nil {
		return nil, err
	}
	matches, err := doublestar.FilepathGlob(absPattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

func absolute(dir, p string) (string, error) {
	if !filepath.IsAbs(p) && dir != "" {
		p = filepath.Join(dir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}
