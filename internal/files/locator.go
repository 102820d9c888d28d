package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/vidproxy/internal/shared"
)

// Entry is a regular file in the output directory.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the regular files in dir whose names start with prefix, newest first.
// An empty prefix matches every file.
func List(dir, prefix string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		if !de.Type().IsRegular() || !strings.HasPrefix(de.Name(), prefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// Locate returns the most recently modified file in dir whose name starts with prefix.
func Locate(dir, prefix string) (*Entry, error) {
	entries, err := List(dir, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrOutputFileMissing, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no file starting with %q in %s", shared.ErrOutputFileMissing, prefix, dir)
	}
	return &entries[0], nil
}

// Verify confirms path is a regular file with content and returns its size.
func Verify(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrOutputFileMissing, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", shared.ErrOutputFileMissing, path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s", shared.ErrEmptyOutputFile, filepath.Base(path))
	}
	return info.Size(), nil
}

// Stats summarizes the regular files in dir.
type Stats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// DirStats counts the regular files in dir and their total size.
func DirStats(dir string) (Stats, error) {
	entries, err := List(dir, "")
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, e := range entries {
		st.Files++
		st.Bytes += e.Size
	}
	return st, nil
}

// Resolve joins name onto dir, rejecting names that would escape it.
func Resolve(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid filename %q", shared.ErrInvalidInput, name)
	}
	return filepath.Join(dir, name), nil
}
