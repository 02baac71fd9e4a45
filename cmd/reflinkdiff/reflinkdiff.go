package reflinkdiff

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/snapmirror/snapmirror/cmd/util"
	"github.com/snapmirror/snapmirror/pkg/reflink"
)

// Mocked for unit testing.
var reflinkRun = reflink.Run

// New creates a new `reflink-diff` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "reflink-diff (dry-run|apply) <src-base> <src-target> <dst-base> <dst-target>",
		Short: "Reflink files that moved between two source snapshots",
		Long: "Reflink files that moved between two source snapshots.\n\n" +
			"Files whose size and mtime match between <src-base> and <src-target> but\n" +
			"that live at a different path are shared into <dst-target> by reflinking\n" +
			"the copy in <dst-base>, so the transfer that follows doesn't have to send\n" +
			"their contents again. In dry-run mode the copies are only reported.",
		Args: cobra.ExactArgs(5),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(args []string) error {
	mode, err := reflink.ParseMode(args[0])
	if err != nil {
		return err
	}
	return reflinkRun(mode, args[1], args[2], args[3], args[4], os.Stdout)
}
