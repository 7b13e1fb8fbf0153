// Package fsutil locates Tyco source files on disk.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the file suffix recognized as a Tyco document.
const Extension = ".tyco"

// CollectSources resolves path to the list of files to load. A file path
// is returned as-is; a directory is searched recursively for files with
// the Tyco extension and the results are sorted, so loading a directory
// is deterministic regardless of walk order.
func CollectSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), Extension) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found under %s", Extension, path)
	}
	sort.Strings(files)
	return files, nil
}
