package compiler

import (
	"path/filepath"
)

// CollectWatchPaths returns a normalized list of watch paths for the
// project: the project directory, the entry's directory and any extra
// paths, relative ones resolved against the project directory.
func CollectWatchPaths(projectDir, entry string, extra []string) []string {
	paths := []string{projectDir}
	if entry != "" {
		paths = append(paths, filepath.Dir(resolvePath(projectDir, entry)))
	}
	for _, p := range extra {
		paths = append(paths, resolvePath(projectDir, p))
	}

	unique := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			continue
		}
		if covered(unique, clean) {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}

	return unique
}

// covered reports whether p lies inside one of dirs.
func covered(dirs []string, p string) bool {
	for _, d := range dirs {
		if p == d || isWithin(d, p) {
			return true
		}
	}
	return false
}

func resolvePath(projectDir, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}
