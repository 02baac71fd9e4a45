package reflink

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// fileKey identifies file contents by size and modification time. Two files
// with the same key are assumed to hold the same data. Contents aren't
// hashed because that would read every byte of the snapshot; the guess is
// cheap, and rsync repairs any file it gets wrong.
type fileKey struct {
	size    int64
	mtimeNS int64
}

// dirScan maps every regular file under a snapshot root to the relative
// paths that carry its key.
type dirScan struct {
	root    string
	entries map[fileKey][]string
}

func scanTree(root string) (dirScan, error) {
	entries := map[fileKey][]string{}
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		key := fileKey{size: info.Size(), mtimeNS: info.ModTime().UnixNano()}
		entries[key] = append(entries[key], relPath)
		return nil
	})
	if err != nil {
		return dirScan{}, err
	}

	return dirScan{root: root, entries: entries}, nil
}

// diff returns a copy operation for every file that appears to have moved
// between the base and target scans. A file counts as moved when its key
// exists in both trees, but its path only in the target. When several base
// paths share a key, any of them works as the copy source; the first in walk
// order keeps the choice deterministic.
func diff(base, target dirScan) []Copy {
	var copies []Copy
	for key, paths := range target.entries {
		basePaths, ok := base.entries[key]
		if !ok {
			continue
		}

		for _, path := range paths {
			if contains(basePaths, path) {
				// Same path with the same size and mtime. The file is
				// assumed unchanged.
				continue
			}
			copies = append(copies, Copy{Src: basePaths[0], Dst: path})
		}
	}

	// Map iteration order would otherwise leak into the output.
	sort.Slice(copies, func(i, j int) bool {
		if copies[i].Src != copies[j].Src {
			return copies[i].Src < copies[j].Src
		}
		return copies[i].Dst < copies[j].Dst
	})
	return copies
}

func contains(paths []string, needle string) bool {
	for _, path := range paths {
		if path == needle {
			return true
		}
	}
	return false
}
