package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snapmirror/snapmirror/cmd/util"
	"github.com/snapmirror/snapmirror/pkg/config"
	"github.com/snapmirror/snapmirror/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout        io.Writer = os.Stdout
	stdin         io.Reader = os.Stdin
	guessDefaults           = guessDefaultsImpl
	parseTool               = config.ParseTool
	writeTool               = config.WriteTool
	stat                    = os.Stat
	lookPath                = exec.LookPath
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.Tool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the snapmirror tool configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.Btrfs, "btrfs", "",
		"Set the btrfs binary in the config. "+
			"Optional: If not set, `snapmirror config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Rsync, "rsync", "",
		"Set the rsync binary in the config. "+
			"Optional: If not set, `snapmirror config` will interactively prompt.")

	// Setup the commands for querying the contents of the tool config.
	type getterSpec struct {
		use, short string
		fn         func(config.Tool) string
	}

	getters := []getterSpec{
		{
			use:   "get-btrfs",
			short: "Get the currently configured btrfs binary",
			fn:    func(cfg config.Tool) string { return cfg.Btrfs },
		},
		{
			use:   "get-rsync",
			short: "Get the currently configured rsync binary",
			fn:    func(cfg config.Tool) string { return cfg.Rsync },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseTool()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig generates the tool config and saves it to the default path.
func SetupConfig(cliOpts config.Tool) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeTool(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetToolConfigPath()
	if err != nil {
		return errors.WithContext(err, "get tool config path")
	}

	fmt.Printf("Wrote config to %s\n", path)
	return nil
}

func toolValidationFn(path string) (string, bool) {
	if _, err := resolveTool(path); err != nil {
		return fmt.Sprintf("Could not find %q. "+
			"Please enter the name of a binary on $PATH, or an absolute path.",
			path), false
	}
	return "", true
}

// resolveTool resolves a configured tool to a runnable path. Bare names are
// looked up on $PATH, anything containing a path separator is checked
// directly.
func resolveTool(path string) (string, error) {
	if strings.ContainsRune(path, os.PathSeparator) {
		if _, err := stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return lookPath(path)
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is.
// It makes best guesses at reasonable defaults, and allows users to explicitly
// override them if desired.
func generateConfig(cliOpts config.Tool) (config.Tool, error) {
	defaults := guessDefaults()
	currConfig, err := parseTool()
	if err != nil {
		currConfig = config.Tool{}
		log.WithError(err).Debug("Failed to read current config")
	}

	// Start from the current config so that fields the wizard doesn't cover,
	// like rsyncArgs, survive a rewrite.
	cfg := currConfig
	if cliOpts.Btrfs != "" {
		cfg.Btrfs = cliOpts.Btrfs
	}
	if cliOpts.Rsync != "" {
		cfg.Rsync = cliOpts.Rsync
	}

	var prompts []prompt
	if cliOpts.Btrfs == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the btrfs binary used for snapshot operations.\n" +
				"An absolute path is safest when snapmirror runs from cron, where $PATH is minimal.\n" +
				"It defaults to the binary found on the current $PATH.",
			prompt:        "Path to btrfs",
			defaultAnswer: defaults.Btrfs,
			currAnswer:    currConfig.Btrfs,
			field:         &cfg.Btrfs,
			validationFn:  toolValidationFn,
		})
	}

	if cliOpts.Rsync == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the rsync binary used to transfer snapshot contents.\n" +
				"It must be version 3.1.0 or newer.\n" +
				"It defaults to the binary found on the current $PATH.",
			prompt:        "Path to rsync",
			defaultAnswer: defaults.Rsync,
			currAnswer:    currConfig.Rsync,
			field:         &cfg.Rsync,
			validationFn:  toolValidationFn,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.Tool{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

// guessDefaults tries to guess reasonable defaults for the fields in the tool
// config.
func guessDefaultsImpl() (cfg config.Tool) {
	if btrfs, err := lookPath("btrfs"); err == nil {
		cfg.Btrfs = btrfs
	} else {
		log.WithError(err).Info("Failed to guess btrfs path")
	}

	if rsync, err := lookPath("rsync"); err == nil {
		cfg.Rsync = rsync
	} else {
		log.WithError(err).Info("Failed to guess rsync path")
	}

	return cfg
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
