// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"strings"
)

// ListSubdirectories returns the names of path's immediate child
// directories in lexical order. Hidden directories (".git" and
// friends) are skipped; they never carry build descriptors and walking
// them only burns time.
func ListSubdirectories(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
