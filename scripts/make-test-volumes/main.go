package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

// Builds a pair of throwaway volume trees for exercising `snapmirror mirror
// --dry-run` and `snapmirror reflink-diff` without btrfs. The source gets a
// run of dated snapshots whose files drift between dates, and the backup is
// seeded with only the oldest snapshot.

const days = 5

// All unchanged files share one mtime so the differ sees them as moves
// rather than edits.
var fileTime = time.Date(2020, time.March, 1, 9, 30, 0, 0, time.UTC)

func main() {
	root := "snapmirror-test-volumes"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	if err := makeVolumes(root); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to make test volumes: %s\n", err)
		os.Exit(1)
	}
}

func makeVolumes(root string) error {
	source := filepath.Join(root, "source")
	backup := filepath.Join(root, "backup")

	start := time.Date(2020, time.March, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		if err := makeSnapshot(filepath.Join(source, date), i); err != nil {
			return errors.WithContext(err, fmt.Sprintf("make snapshot %s", date))
		}
	}

	oldest := start.Format("2006-01-02")
	err := copyTree(filepath.Join(source, oldest), filepath.Join(backup, oldest))
	if err != nil {
		return errors.WithContext(err, "seed backup")
	}

	log.WithField("path", root).Info("Wrote test volumes")
	fmt.Printf("Try:\n  snapmirror mirror --dry-run %s %s\n", source, backup)
	return nil
}

func makeSnapshot(dir string, day int) error {
	// Files that never change between snapshots.
	static := map[string]string{
		"music/album/track01.flac": "static contents",
		"documents/taxes-2019.pdf": "more static contents",
	}
	for path, contents := range static {
		if err := writeFile(filepath.Join(dir, path), contents); err != nil {
			return err
		}
	}

	// A file that moves halfway through the run. Its size and mtime stay
	// the same, so reflink-diff reports it.
	photo := "incoming/photo-0231.jpg"
	if day >= days/2 {
		photo = "photos/2020/photo-0231.jpg"
	}
	if err := writeFile(filepath.Join(dir, photo), "jpeg bytes"); err != nil {
		return err
	}

	// A file that grows every day, which is left to rsync.
	journal := strings.Repeat("Dear diary.\n", day+1)
	return writeFile(filepath.Join(dir, "journal.txt"), journal)
}

func writeFile(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "mkdir")
	}
	if err := ioutil.WriteFile(path, []byte(contents), 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return os.Chtimes(path, fileTime, fileTime)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		contents, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(target, contents, info.Mode()); err != nil {
			return err
		}
		return os.Chtimes(target, info.ModTime(), info.ModTime())
	})
}
