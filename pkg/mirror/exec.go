package mirror

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/snapmirror/snapmirror/pkg/config"
	"github.com/snapmirror/snapmirror/pkg/errors"
	"github.com/snapmirror/snapmirror/pkg/reflink"
)

// An Executor runs the external operations of the sync protocol. The real
// implementation invokes the tools; the dry-run implementation reports what
// would run. Both build the same command lines, so a dry run previews
// exactly what a real run would do.
type Executor interface {
	// Snapshot creates a writable snapshot of the subvolume at base.
	Snapshot(base, target string) error

	// SyncFilesystem commits pending changes of the filesystem containing
	// path to disk.
	SyncFilesystem(path string) error

	// ReflinkDiff replays likely moves between the two source snapshots on
	// top of dstTarget, reflinking contents out of dstBase.
	ReflinkDiff(srcBase, srcTarget, dstBase, dstTarget string) error

	// Transfer syncs the contents of src into dst.
	Transfer(src, dst string) error

	// SetReadOnly flips the subvolume at path to read-only.
	SetReadOnly(path string) error
}

// Variables mocked for unit testing.
var (
	runCommand  = (*exec.Cmd).Run
	reflinkDiff = reflink.Run
)

func snapshotArgs(tools config.Tool, base, target string) []string {
	return []string{tools.Btrfs, "subvolume", "snapshot", base, target}
}

// syncFilesystemArgs builds a filesystem-wide sync. A per-subvolume wait
// ("btrfs subvolume sync") would be the obvious alternative, but it gets
// stuck polling an ioctl forever. The filesystem sync is less buggy.
func syncFilesystemArgs(tools config.Tool, path string) []string {
	return []string{tools.Btrfs, "filesystem", "sync", path}
}

func setReadOnlyArgs(tools config.Tool, path string) []string {
	return []string{tools.Btrfs, "property", "set", "-t", "subvol", path, "ro", "true"}
}

// transferArgs builds the rsync invocation, tuned to minimize fragmentation
// and keep extent sharing: update files in place instead of rewriting them,
// transfer deltas rather than whole files, and look for similar files when
// a name is new.
func transferArgs(tools config.Tool, src, dst string) []string {
	args := []string{
		tools.Rsync,
		"-a",
		"--delete-delay",
		"--inplace",
		"--preallocate",
		"--no-whole-file",
		"--fuzzy",
		"--info=copy,del,name1,progress2,stats2",
	}
	args = append(args, tools.RsyncArgs...)
	return append(args, src, dst)
}

type execExecutor struct {
	tools config.Tool
	out   io.Writer
}

func newExecExecutor(tools config.Tool, out io.Writer) execExecutor {
	return execExecutor{tools: tools, out: out}
}

func (e execExecutor) Snapshot(base, target string) error {
	return e.run(snapshotArgs(e.tools, base, target))
}

func (e execExecutor) SyncFilesystem(path string) error {
	return e.run(syncFilesystemArgs(e.tools, path))
}

func (e execExecutor) ReflinkDiff(srcBase, srcTarget, dstBase, dstTarget string) error {
	return reflinkDiff(reflink.ModeApply, srcBase, srcTarget, dstBase, dstTarget, e.out)
}

func (e execExecutor) Transfer(src, dst string) error {
	return e.run(transferArgs(e.tools, src, dst))
}

func (e execExecutor) SetReadOnly(path string) error {
	return e.run(setReadOnlyArgs(e.tools, path))
}

func (e execExecutor) run(args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = e.out
	cmd.Stderr = os.Stderr
	if err := runCommand(cmd); err != nil {
		return errors.WithContext(err, fmt.Sprintf("run %q", strings.Join(args, " ")))
	}
	return nil
}

type dryRunExecutor struct {
	tools config.Tool
	out   io.Writer
}

// newDryRunExecutor returns an Executor that prints the commands instead of
// executing them. The structural diff still runs, in report-only mode, so
// the operator sees which moves a real run would replay.
func newDryRunExecutor(tools config.Tool, out io.Writer) dryRunExecutor {
	return dryRunExecutor{tools: tools, out: out}
}

func (e dryRunExecutor) Snapshot(base, target string) error {
	return e.wouldRun(snapshotArgs(e.tools, base, target))
}

func (e dryRunExecutor) SyncFilesystem(path string) error {
	return e.wouldRun(syncFilesystemArgs(e.tools, path))
}

func (e dryRunExecutor) ReflinkDiff(srcBase, srcTarget, dstBase, dstTarget string) error {
	return reflinkDiff(reflink.ModeDryRun, srcBase, srcTarget, dstBase, dstTarget, e.out)
}

func (e dryRunExecutor) Transfer(src, dst string) error {
	return e.wouldRun(transferArgs(e.tools, src, dst))
}

func (e dryRunExecutor) SetReadOnly(path string) error {
	return e.wouldRun(setReadOnlyArgs(e.tools, path))
}

func (e dryRunExecutor) wouldRun(args []string) error {
	_, err := fmt.Fprintln(e.out, "Would run", strings.Join(args, " "))
	return err
}
