// Package reflink replays likely file moves between two snapshots as
// reflink copies, so that a later rsync pass updates moved files in place
// instead of rewriting them and destroying extent sharing.
package reflink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

// Mode selects whether detected moves are only printed, or replayed as
// reflinks.
type Mode string

const (
	// ModeDryRun prints the reflinks that would be created.
	ModeDryRun Mode = "dry-run"

	// ModeApply creates the reflinks.
	ModeApply Mode = "apply"
)

// ParseMode parses a mode argument from the command line.
func ParseMode(arg string) (Mode, error) {
	switch Mode(arg) {
	case ModeDryRun, ModeApply:
		return Mode(arg), nil
	}
	return "", errors.NewFriendlyError(
		"unknown mode %q: expected %q or %q", arg, ModeDryRun, ModeApply)
}

// A Copy records that the file at Src in the base snapshot appears to have
// moved to Dst in the target snapshot. Both paths are relative to their
// snapshot root.
type Copy struct {
	Src string
	Dst string
}

// Variables mocked for unit testing.
var (
	fs        = afero.NewOsFs()
	cloneFile = cloneFileImpl
)

// Run diffs the file tree from srcBase to srcTarget, and replays the moves
// it detects on top of dstTarget, reflinking the contents out of dstBase.
// Each move is printed to out. The destination trees are never read, so in
// dry-run mode they don't need to exist.
func Run(mode Mode, srcBase, srcTarget, dstBase, dstTarget string, out io.Writer) error {
	base, err := scanTree(srcBase)
	if err != nil {
		return errors.WithContext(err, "scan base")
	}

	target, err := scanTree(srcTarget)
	if err != nil {
		return errors.WithContext(err, "scan target")
	}

	copies := diff(base, target)
	log.WithFields(log.Fields{
		"base":   srcBase,
		"target": srcTarget,
		"moves":  len(copies),
	}).Debug("Detected moved files")

	for _, c := range copies {
		fmt.Fprintf(out, "%q -> %q\n", c.Src, c.Dst)
		if mode == ModeDryRun {
			continue
		}

		src := filepath.Join(dstBase, c.Src)
		dst := filepath.Join(dstTarget, c.Dst)
		if err := cloneFile(src, dst); err != nil {
			return errors.WithContext(err, fmt.Sprintf("reflink %q", c.Dst))
		}
	}
	return nil
}

// cloneFileImpl makes dst a reflinked copy of src. It uses the os package
// directly rather than the afero filesystem because the FICLONE ioctl needs
// real file descriptors.
func cloneFileImpl(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	// The move may have put the file in a directory that doesn't exist in
	// the cloned snapshot yet. rsync fixes up the directory metadata later.
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithContext(err, "make parent")
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileInfo.Mode())
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer dstFile.Close()

	if err := unix.IoctlFileClone(int(dstFile.Fd()), int(srcFile.Fd())); err != nil {
		return errors.WithContext(err, "ioctl ficlone")
	}
	return nil
}
