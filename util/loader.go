// Package util - Filesystem helpers for frame sequences stored as image files.
package util

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number parsed from the file name, or -1.
	Frame int
}

var trailingNumber = regexp.MustCompile(`(\d+)$`)

// IsImageFile reports whether the extension is one the frame decoder reads.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// LoadDirectoryImageFiles reads all image files from a directory in frame
// order. Files whose names end in a number ("frame-12.jpg", "0007.png") are
// ordered by that number; the rest follow, ordered by name.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if the directory or a file cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		frame := -1
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if m := trailingNumber.FindString(stem); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				frame = n
			}
		}

		files = append(files, ImageFile{Path: path, Data: data, Frame: frame})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0 && a.Frame != b.Frame:
			return a.Frame < b.Frame
		case (a.Frame >= 0) != (b.Frame >= 0):
			return a.Frame >= 0
		}
		return a.Path < b.Path
	})

	return files, nil
}
