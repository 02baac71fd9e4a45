package mirror

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/snapmirror/snapmirror/pkg/config"
	"github.com/snapmirror/snapmirror/pkg/errors"
	"github.com/snapmirror/snapmirror/pkg/snapshot"
)

// Variables mocked for unit testing.
var listSnapshots = snapshot.List

// A Mirror replicates the dated snapshots of a source volume onto a
// destination volume.
type Mirror struct {
	// Source and Dest are the volume directories holding the dated
	// snapshots.
	Source string
	Dest   string

	// DryRun reports the commands of each pass instead of running them.
	DryRun bool

	// Single stops after one transferred snapshot even if more are missing.
	Single bool

	exec  Executor
	clock clockwork.Clock
	out   io.Writer
}

// New creates a Mirror between the two volume directories that writes its
// progress to out.
func New(source, dest string, dryRun, single bool, tools config.Tool, out io.Writer) *Mirror {
	var executor Executor = newExecExecutor(tools, out)
	if dryRun {
		executor = newDryRunExecutor(tools, out)
	}

	return &Mirror{
		Source: source,
		Dest:   dest,
		DryRun: dryRun,
		Single: single,
		exec:   executor,
		clock:  clockwork.NewRealClock(),
		out:    out,
	}
}

// Run repeats sync passes until the destination volume has every snapshot
// of the source volume.
func (m *Mirror) Run() error {
	for {
		synced, err := m.syncOne()
		if err != nil {
			return err
		}

		if !synced {
			return nil
		}

		if m.Single {
			fmt.Fprintln(m.out, "Stopping after one transfer because of --single.")
			return nil
		}

		if m.DryRun {
			// A dry run creates nothing at the destination, so the next pass
			// would pick the same target over and over.
			fmt.Fprintln(m.out, "Stopping now to avoid endless loop because of --dry-run.")
			return nil
		}
	}
}

// syncOne picks the missing snapshot to build next and runs one pass of the
// protocol for it. It returns false when the volumes are already in sync.
func (m *Mirror) syncOne() (bool, error) {
	// List both volumes fresh on every pass, so each decision is based on
	// what the previous pass actually produced.
	srcSnapshots, err := listSnapshots(m.Source)
	if err != nil {
		return false, errors.WithContext(err, "list source snapshots")
	}

	dstSnapshots, err := listSnapshots(m.Dest)
	if err != nil {
		return false, errors.WithContext(err, "list destination snapshots")
	}

	missing := srcSnapshots.Diff(dstSnapshots)
	if len(missing) == 0 {
		return false, nil
	}

	// Build the latest missing snapshot first. Data is mostly append-only:
	// rebuilding a file's versions in order would only fragment the later
	// snapshots, so sync the latest version whole and rebuild the past
	// versions backwards from it.
	target, _ := missing.Max()

	base, err := dstSnapshots.ClosestTo(target)
	if err != nil {
		if errors.RootCause(err) == errors.ErrNoBaseSnapshot {
			return false, errors.NewFriendlyError("The destination volume %q "+
				"has no snapshots to clone from. Seed it with an initial copy "+
				"of one snapshot, then rerun.", m.Dest)
		}
		return false, errors.WithContext(err, "pick base snapshot")
	}

	start := m.clock.Now()
	if err := m.syncPass(base, target); err != nil {
		return false, err
	}

	log.WithFields(log.Fields{
		"target":   target.String(),
		"base":     base.String(),
		"duration": m.clock.Now().Sub(start),
	}).Info("Finished sync pass")
	return true, nil
}

// syncPass runs the five-step protocol that builds dst/target out of
// dst/base and src/target.
func (m *Mirror) syncPass(base, target snapshot.Date) error {
	srcBase := filepath.Join(m.Source, base.String())
	srcTarget := filepath.Join(m.Source, target.String())
	dstBase := filepath.Join(m.Dest, base.String())
	dstTarget := filepath.Join(m.Dest, target.String())

	fmt.Fprintf(m.out, "Syncing %s, using %s as base.\n", target, base)

	// Create a writable snapshot of the base subvolume under the target's
	// name.
	if err := m.exec.Snapshot(dstBase, dstTarget); err != nil {
		return errors.WithContext(err, "snapshot base")
	}

	fmt.Fprintln(m.out, "Waiting for sync of snapshot.")
	if err := m.exec.SyncFilesystem(dstTarget); err != nil {
		return errors.WithContext(err, "sync filesystem")
	}

	// Replay likely moves as reflinks before the transfer, so rsync finds
	// moved contents already in place instead of copying them anew.
	if err := m.exec.ReflinkDiff(srcBase, srcTarget, dstBase, dstTarget); err != nil {
		return errors.WithContext(err, "reflink moved files")
	}

	// The trailing slash makes rsync transfer the directory's contents
	// rather than the directory itself.
	if err := m.exec.Transfer(srcTarget+"/", dstTarget); err != nil {
		return errors.WithContext(err, "transfer contents")
	}

	if err := m.exec.SetReadOnly(dstTarget); err != nil {
		return errors.WithContext(err, "set read-only")
	}

	if err := m.exec.SyncFilesystem(dstTarget); err != nil {
		return errors.WithContext(err, "sync filesystem")
	}
	return nil
}
