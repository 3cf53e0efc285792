// Package fileutil provides the storage side of the decoder: case-insensitive
// lookup of image files on disk, seekable streams and name lists.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive searches dir for a regular file whose name matches
// filename ignoring case. Bitmaps copied from FAT media often carry upper-case
// names ("LOGO.BMP") while callers ask for "logo.bmp".
//
// Returns the joined path of the entry that actually exists.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	if name, ok := matchEntry(entries, filename); ok {
		return filepath.Join(dir, name), nil
	}
	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// matchEntry はディレクトリ以外のエントリから大文字小文字を無視して一致する名前を探す
func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	searchName := strings.ToLower(filename)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return entry.Name(), true
		}
	}
	return "", false
}
