package mirror

import (
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/snapmirror/snapmirror/cmd/util"
	"github.com/snapmirror/snapmirror/pkg/config"
	"github.com/snapmirror/snapmirror/pkg/errors"
	"github.com/snapmirror/snapmirror/pkg/mirror"
	"github.com/snapmirror/snapmirror/pkg/preflight"
)

// Mocked for unit testing.
var (
	parseTool      = config.ParseTool
	preflightCheck = preflight.Check
	mirrorRun      = (*mirror.Mirror).Run
)

// New creates a new `mirror` command.
func New() *cobra.Command {
	var dryRun bool
	var single bool
	cmd := &cobra.Command{
		Use:   "mirror <source-dir> <dest-dir>",
		Short: "Copy missing snapshots from the source volume to the destination volume",
		Long: "Copy missing snapshots from the source volume to the destination volume.\n\n" +
			"Both directories must contain btrfs subvolumes named after their snapshot\n" +
			"date (e.g. 2020-03-14). Snapshots that exist in the source but not in the\n" +
			"destination are transferred one per pass, newest first, each one cloned\n" +
			"from the nearest snapshot the destination already has.",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0], args[1], dryRun, single); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Print the commands that would run without executing them")
	cmd.Flags().BoolVar(&single, "single", false,
		"Stop after transferring one snapshot")
	return cmd
}

func run(source, dest string, dryRun, single bool) error {
	source, err := homedir.Expand(source)
	if err != nil {
		return errors.WithContext(err, "expand source path")
	}

	dest, err = homedir.Expand(dest)
	if err != nil {
		return errors.WithContext(err, "expand destination path")
	}

	tools, err := parseTool()
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	// A dry run only prints commands, so it shouldn't require the tools to
	// be installed.
	if !dryRun {
		if err := preflightCheck(tools); err != nil {
			return err
		}
	}

	return mirrorRun(mirror.New(source, dest, dryRun, single, tools, os.Stdout))
}
