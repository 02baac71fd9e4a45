package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"

	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/snapmirror/snapmirror/pkg/config"
)

func TestPromptUser(t *testing.T) {
	tests := []struct {
		name                                                 string
		helpString, prompt, defaultAnswer, currAnswer, stdin string
		expPrompt, expResult                                 string
	}{
		{
			name:          "No default or current answer",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "",
			currAnswer:    "",
			stdin:         "user input\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"Please enter manually: \n",
			expResult: "user input",
		},
		{
			name:          "Default answer only, chose default answer",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "default answer",
			currAnswer:    "",
			stdin:         "1\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
		{
			name:          "Distinct answers, chose current answer",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "default answer",
			currAnswer:    "current answer",
			stdin:         "2\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. current answer\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expResult: "current answer",
		},
		{
			name:          "Invalid input",
			helpString:    "explanation",
			prompt:        "prompt",
			defaultAnswer: "default answer",
			currAnswer:    "",
			stdin: "invalid input\n" +
				"1\n",
			expPrompt: "explanation\n" +
				"prompt:\n" +
				"\n" +
				"\t1. default answer (recommended)\n" +
				"\t2. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-2]: " +
				"Please choose one [1-2]: \n",
			expResult: "default answer",
		},
	}

	type promptUserResult struct {
		resp string
		err  error
	}
	for _, test := range tests {
		// Setup mocks.
		out := bytes.NewBuffer(nil)
		stdinReader, stdinWriter := io.Pipe()
		stdout = out
		stdin = stdinReader

		// Start the promptUser function.
		resultChan := make(chan promptUserResult)
		go func() {
			resp, err := promptUser(test.helpString, test.prompt,
				test.defaultAnswer, test.currAnswer)
			resultChan <- promptUserResult{resp, err}
		}()

		// Provide the user input.
		fmt.Fprintln(stdinWriter, test.stdin)

		// Check that promptUser behaved as expected.
		result := <-resultChan
		assert.NoError(t, result.err, test.name)
		assert.Equal(t, test.expResult, result.resp, test.name)

		// Test the prompt after `promptUser` has exited so that we can be sure
		// we're not testing before `promptUser` has a chance to print to stdout.
		assert.Equal(t, test.expPrompt, out.String(), test.name)
	}
}

func TestToolValidation(t *testing.T) {
	stat = func(path string) (os.FileInfo, error) {
		if strings.HasPrefix(path, "/missing") {
			return nil, os.ErrNotExist
		}
		return nil, nil
	}
	lookPath = func(name string) (string, error) {
		if name == "rsync" {
			return "/usr/bin/rsync", nil
		}
		return "", exec.ErrNotFound
	}

	tests := []struct {
		name     string
		input    string
		expValid bool
	}{
		{"AbsolutePathExists", "/sbin/btrfs", true},
		{"AbsolutePathMissing", "/missing/btrfs", false},
		{"NameOnPath", "rsync", true},
		{"NameNotOnPath", "rsink", false},
	}

	for _, test := range tests {
		msg, ok := toolValidationFn(test.input)
		assert.Equal(t, test.expValid, ok, test.name)
		if !test.expValid {
			assert.Contains(t, msg, fmt.Sprintf("%q", test.input), test.name)
		}
	}
}

func TestGenerateConfig(t *testing.T) {
	btrfsHelp := "Enter the btrfs binary used for snapshot operations.\n" +
		"An absolute path is safest when snapmirror runs from cron, where $PATH is minimal.\n" +
		"It defaults to the binary found on the current $PATH.\n"
	rsyncHelp := "Enter the rsync binary used to transfer snapshot contents.\n" +
		"It must be version 3.1.0 or newer.\n" +
		"It defaults to the binary found on the current $PATH.\n"

	tests := []struct {
		name          string
		cliOpts       config.Tool
		defaults      config.Tool
		mockParseTool func() (config.Tool, error)
		inputs        []string
		expPrompt     string
		expConfig     config.Tool
	}{
		{
			name: "Fresh setup, accept guessed tools",
			defaults: config.Tool{
				Btrfs: "/sbin/btrfs",
				Rsync: "/usr/bin/rsync",
			},
			mockParseTool: func() (config.Tool, error) {
				return config.Default(), nil
			},
			inputs: []string{"1\n", "1\n"},
			expPrompt: btrfsHelp +
				"Path to btrfs:\n" +
				"\n" +
				"\t1. /sbin/btrfs (recommended)\n" +
				"\t2. btrfs\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n" +
				rsyncHelp +
				"Path to rsync:\n" +
				"\n" +
				"\t1. /usr/bin/rsync (recommended)\n" +
				"\t2. rsync\n" +
				"\t3. (Enter manually)\n" +
				"\n" +
				"Please choose one [1-3]: \n",
			expConfig: config.Tool{
				Version: config.SupportedToolConfigVersion,
				Btrfs:   "/sbin/btrfs",
				Rsync:   "/usr/bin/rsync",
			},
		},
		{
			name: "CLI flags skip the prompts and keep rsyncArgs",
			cliOpts: config.Tool{
				Btrfs: "/opt/btrfs",
				Rsync: "/opt/rsync",
			},
			mockParseTool: func() (config.Tool, error) {
				return config.Tool{
					Version:   config.SupportedToolConfigVersion,
					Btrfs:     "btrfs",
					Rsync:     "rsync",
					RsyncArgs: []string{"--bwlimit=10m"},
				}, nil
			},
			expConfig: config.Tool{
				Version:   config.SupportedToolConfigVersion,
				Btrfs:     "/opt/btrfs",
				Rsync:     "/opt/rsync",
				RsyncArgs: []string{"--bwlimit=10m"},
			},
		},
		{
			name: "Manual entry retries until the tool resolves",
			mockParseTool: func() (config.Tool, error) {
				return config.Tool{}, assert.AnError
			},
			inputs: []string{"/missing/btrfs\n", "/sbin/btrfs\n", "/usr/bin/rsync\n"},
			expPrompt: btrfsHelp +
				"Path to btrfs:\n" +
				"Please enter manually: \n" +
				`Could not find "/missing/btrfs". ` +
				"Please enter the name of a binary on $PATH, or an absolute path.\n" +
				btrfsHelp +
				"Path to btrfs:\n" +
				"Please enter manually: \n" +
				rsyncHelp +
				"Path to rsync:\n" +
				"Please enter manually: \n",
			expConfig: config.Tool{
				Btrfs: "/sbin/btrfs",
				Rsync: "/usr/bin/rsync",
			},
		},
	}

	stat = func(path string) (os.FileInfo, error) {
		if strings.HasPrefix(path, "/missing") {
			return nil, os.ErrNotExist
		}
		return nil, nil
	}
	lookPath = func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}

	type generateConfigResult struct {
		cfg config.Tool
		err error
	}

	for _, test := range tests {
		test := test

		// Setup mocks.
		out := bytes.NewBuffer(nil)
		stdinReader, stdinWriter := io.Pipe()
		stdout = out
		stdin = stdinReader
		guessDefaults = func() config.Tool { return test.defaults }
		parseTool = test.mockParseTool

		// Start the generateConfig function.
		resultChan := make(chan generateConfigResult)
		go func() {
			resp, err := generateConfig(test.cliOpts)
			resultChan <- generateConfigResult{resp, err}
		}()

		// Provide the user input.
		for _, input := range test.inputs {
			fmt.Fprint(stdinWriter, input)
		}

		// Check that generateConfig behaved as expected.
		result := <-resultChan
		assert.NoError(t, result.err, test.name)
		assert.Equal(t, test.expConfig, result.cfg, test.name)

		// Test the prompt after `generateConfig` has exited so that we can be
		// sure we're not testing before `generateConfig` has a chance to print
		// to stdout.
		assert.Equal(t, test.expPrompt, out.String(), test.name)
	}
}

func TestGuessDefaults(t *testing.T) {
	tests := []struct {
		name     string
		lookPath func(string) (string, error)
		expCfg   config.Tool
		expLogs  []string
	}{
		{
			name: "Both tools found",
			lookPath: func(name string) (string, error) {
				return "/usr/bin/" + name, nil
			},
			expCfg: config.Tool{
				Btrfs: "/usr/bin/btrfs",
				Rsync: "/usr/bin/rsync",
			},
		},
		{
			name: "Btrfs missing",
			lookPath: func(name string) (string, error) {
				if name == "btrfs" {
					return "", exec.ErrNotFound
				}
				return "/usr/bin/" + name, nil
			},
			expCfg: config.Tool{
				Rsync: "/usr/bin/rsync",
			},
			expLogs: []string{"Failed to guess btrfs path"},
		},
	}

	for _, test := range tests {
		lookPath = test.lookPath
		logHook := logrusTest.NewGlobal()

		assert.Equal(t, test.expCfg, guessDefaultsImpl(), test.name)
		assert.Len(t, logHook.Entries, len(test.expLogs), test.name)
		for i, log := range test.expLogs {
			assert.Equal(t, log, logHook.Entries[i].Message, test.name)
		}
	}
}

func TestGetters(t *testing.T) {
	configCmd := New()
	btrfsCmd, _, err := configCmd.Find([]string{"get-btrfs"})
	assert.NoError(t, err)
	rsyncCmd, _, err := configCmd.Find([]string{"get-rsync"})
	assert.NoError(t, err)

	expBtrfs := "/sbin/btrfs"
	expRsync := "/usr/bin/rsync"
	parseTool = func() (config.Tool, error) {
		return config.Tool{
			Btrfs: expBtrfs,
			Rsync: expRsync,
		}, nil
	}

	out := bytes.NewBuffer(nil)
	stdout = out

	btrfsCmd.Run(nil, nil)
	rsyncCmd.Run(nil, nil)
	assert.Equal(t, fmt.Sprintf("%s\n%s\n", expBtrfs, expRsync), out.String())
}
