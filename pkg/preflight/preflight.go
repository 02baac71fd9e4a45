package preflight

import (
	"os/exec"
	"regexp"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/snapmirror/snapmirror/pkg/config"
	"github.com/snapmirror/snapmirror/pkg/errors"
)

// minRsyncVersion is the oldest rsync that understands --preallocate, which
// the transfer command line depends on.
var minRsyncVersion = goversion.Must(goversion.NewVersion("3.1.0"))

// rsyncVersionPattern matches the version on the first line of
// `rsync --version`, e.g. "rsync  version 3.1.3  protocol version 31".
var rsyncVersionPattern = regexp.MustCompile(`rsync\s+version\s+(\d+\.\d+(\.\d+)?)`)

// Variables mocked for unit testing.
var (
	lookPath      = exec.LookPath
	commandOutput = (*exec.Cmd).Output
)

// Check verifies that the external tools the mirror protocol shells out to
// are present and usable, before any snapshot is touched.
func Check(tools config.Tool) error {
	if _, err := lookPath(tools.Btrfs); err != nil {
		return errors.NewFriendlyError("The btrfs tool %q was not found. "+
			"Install btrfs-progs, or point the btrfs field of %s at the binary.",
			tools.Btrfs, config.ToolConfigPath)
	}

	return checkRsync(tools.Rsync)
}

func checkRsync(rsync string) error {
	out, err := commandOutput(exec.Command(rsync, "--version"))
	if err != nil {
		return errors.NewFriendlyError("Could not run %q --version. "+
			"Install rsync %s or newer, or point the rsync field of %s at "+
			"the binary.", rsync, minRsyncVersion, config.ToolConfigPath)
	}

	match := rsyncVersionPattern.FindSubmatch(out)
	if match == nil {
		return errors.New("unrecognized rsync --version output")
	}

	rsyncVersion, err := goversion.NewVersion(string(match[1]))
	if err != nil {
		return errors.WithContext(err, "parse rsync version")
	}

	if rsyncVersion.LessThan(minRsyncVersion) {
		return errors.NewFriendlyError("The installed rsync is version %s, "+
			"but the transfer flags require at least %s (the first release "+
			"with --preallocate).", rsyncVersion, minRsyncVersion)
	}

	log.WithField("version", rsyncVersion).Debug("rsync preflight passed")
	return nil
}
