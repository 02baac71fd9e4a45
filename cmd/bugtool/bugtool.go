package bugtool

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/snapmirror/snapmirror/cmd/util"
	"github.com/snapmirror/snapmirror/pkg/config"
	"github.com/snapmirror/snapmirror/pkg/errors"
	"github.com/snapmirror/snapmirror/pkg/snapshot"
	"github.com/snapmirror/snapmirror/pkg/version"
)

var fs = afero.NewOsFs()

// Mocked for unit testing.
var (
	parseTool     = config.ParseTool
	getLogPath    = config.GetLogPath
	commandOutput = (*exec.Cmd).CombinedOutput
	listSnapshots = snapshot.List
)

// New creates a new `bug-tool` command.
func New() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bug-tool [<source-dir> <dest-dir>]",
		Short: "Generate an archive for snapmirror debugging",
		Args:  cobra.RangeArgs(0, 2),
		Run:   func(_ *cobra.Command, args []string) { main(out, args) },
	}
	cmd.Flags().StringVar(&out, "out", "", "path for archive")
	return cmd
}

func main(out string, volumes []string) {
	tmpdir, err := afero.TempDir(fs, "", "snapmirror-bug-tool")
	if err != nil {
		err = errors.NewFriendlyError("Failed to create out directory:\n%s", err)
		util.HandleFatalError(err)
	}

	// Wrap defer in a function to handle errors from fs.RemoveAll().
	defer func() {
		err := fs.RemoveAll(tmpdir)
		if err != nil {
			util.HandleFatalError(err)
		}
	}()

	pp := util.NewProgressPrinter(os.Stdout, "Collecting debug information")
	go pp.Run()
	setupInfo(tmpdir, volumes)
	pp.Stop()

	if out == "" {
		out = fmt.Sprintf("snapmirror-bug-info-%s.tar.gz",
			time.Now().Format("Jan_02_2006-15-04-05"))
	}
	if err := tarDirectory(tmpdir, out); err != nil {
		err = errors.NewFriendlyError("Failed to tar:\n%s", err)
		util.HandleFatalError(err)
	}

	msg := `Created bug information archive at '%s'.
Please attach it when reporting an issue.
You may want to edit the archive if your snapshot names are sensitive.
The archive contains:
 * The snapmirror CLI logs.
 * The effective tool configuration.
 * The version of the snapmirror CLI.
 * The version output of the btrfs and rsync tools.
 * The snapshot listings of the source and destination volumes, if given.
`
	fmt.Printf(msg, out)
}

func setupInfo(root string, volumes []string) {
	if err := setupCLILogs(root); err != nil {
		log.WithError(err).Warn("Failed to setup CLI logs")
	}

	if err := setupVersion(root); err != nil {
		log.WithError(err).Warn("Failed to setup version info")
	}

	tools, err := parseTool()
	if err != nil {
		log.WithError(err).Error("Failed to parse tool config")
		return
	}

	if err := setupConfig(root, tools); err != nil {
		log.WithError(err).Warn("Failed to setup config")
	}

	toolVersions := map[string][]string{
		"btrfs-version": {tools.Btrfs, "--version"},
		"rsync-version": {tools.Rsync, "--version"},
	}
	for name, command := range toolVersions {
		err := setupToolVersion(filepath.Join(root, name), command)
		if err != nil {
			log.WithError(err).WithField("tool", command[0]).
				Warn("Failed to setup tool version")
		}
	}

	switch len(volumes) {
	case 0:
	case 2:
		if err := setupSnapshots(filepath.Join(root, "snapshots"), volumes); err != nil {
			log.WithError(err).Warn("Failed to setup snapshot listings")
		}
	default:
		log.Warn("Ignoring source volume argument without a destination volume")
	}
}

func setupCLILogs(root string) error {
	logPath, err := getLogPath()
	if err != nil {
		return errors.WithContext(err, "expand log path")
	}

	logFile, err := fs.Open(logPath)
	if err != nil {
		return errors.WithContext(err, "open log")
	}
	defer logFile.Close()

	outFile, err := fs.Create(filepath.Join(root, "cli.log"))
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, logFile); err != nil {
		return errors.WithContext(err, "copy")
	}
	return nil
}

func setupVersion(root string) error {
	contents := fmt.Sprintf("%s\n", version.Version)
	return afero.WriteFile(fs, filepath.Join(root, "version"), []byte(contents), 0644)
}

func setupConfig(root string, tools config.Tool) error {
	toolsBytes, err := yaml.Marshal(tools)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}
	return afero.WriteFile(fs, filepath.Join(root, "config.yaml"), toolsBytes, 0644)
}

func setupToolVersion(path string, command []string) error {
	output, err := commandOutput(exec.Command(command[0], command[1:]...))
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("run %q", strings.Join(command, " ")))
	}
	return afero.WriteFile(fs, path, output, 0644)
}

func setupSnapshots(outdir string, volumes []string) error {
	if err := fs.Mkdir(outdir, 0755); err != nil {
		return errors.WithContext(err, "mkdir")
	}

	names := []string{"source", "destination"}
	for i, dir := range volumes {
		snapshots, err := listSnapshots(dir)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("list %s snapshots", names[i]))
		}

		var listing bytes.Buffer
		for _, date := range snapshots.Sorted() {
			fmt.Fprintln(&listing, date)
		}

		path := filepath.Join(outdir, names[i])
		if err := afero.WriteFile(fs, path, listing.Bytes(), 0644); err != nil {
			return errors.WithContext(err, "write")
		}
	}
	return nil
}

func tarDirectory(src, outPath string) error {
	out, err := fs.Create(outPath)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	return afero.Walk(fs, src, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, fi.Name())
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("make header %s", file))
		}

		relPath, err := filepath.Rel(src, file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("get relative path of %s to %s", file, src))
		}

		header.Name = filepath.Join("snapmirror-bug-info", relPath)
		if err := tw.WriteHeader(header); err != nil {
			return errors.WithContext(err, fmt.Sprintf("write %s header", file))
		}

		// Only write contents if it's a file (i.e. not a directory).
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("open %s", file))
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return errors.WithContext(err, fmt.Sprintf("copy %s", file))
		}
		return nil
	})
}
