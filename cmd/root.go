package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snapmirror/snapmirror/cmd/bugtool"
	configCmd "github.com/snapmirror/snapmirror/cmd/config"
	"github.com/snapmirror/snapmirror/cmd/mirror"
	"github.com/snapmirror/snapmirror/cmd/reflinkdiff"
	"github.com/snapmirror/snapmirror/cmd/util"
	"github.com/snapmirror/snapmirror/cmd/version"
	"github.com/snapmirror/snapmirror/pkg/config"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "SNAPMIRROR_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	setupLogFile()

	rootCmd := &cobra.Command{
		Use:          "snapmirror",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		bugtool.New(),
		configCmd.New(),
		mirror.New(),
		reflinkdiff.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

// setupLogFile redirects log output to the file collected by
// `snapmirror bug-tool`. If the file can't be opened, logging stays on
// stderr.
func setupLogFile() {
	log.SetFormatter(&log.TextFormatter{
		// Show the full timestamp rather than the time elapsed since
		// snapmirror started. This makes correlating logs across nightly
		// runs easier.
		FullTimestamp: true,

		// Disable colors since we'll be logging to a file.
		DisableColors: true,
	})

	logPath, err := config.GetLogPath()
	if err != nil {
		log.WithError(err).Debug("Failed to expand log path")
		return
	}

	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.WithError(err).Debug("Failed to open log file")
		return
	}
	log.SetOutput(logFile)
}
