package config

import (
	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

const (
	// ToolConfigPath is the default path to the snapmirror config file.
	ToolConfigPath = "~/.snapmirror.yaml"

	// LogPath is the file that CLI log output is mirrored to so that
	// `snapmirror bug-tool` can collect it.
	LogPath = "~/.snapmirror.log"

	// InitialToolConfigVersion is the first version of the snapmirror
	// config. Config files that do not specify a version will default to
	// this version.
	InitialToolConfigVersion = "v1alpha1"

	// SupportedToolConfigVersion is the supported version of the snapmirror
	// config of the current snapmirror binary.
	SupportedToolConfigVersion = "v1alpha1"
)

// Tool configures the external tools that carry out the snapshot
// operations.
type Tool struct {
	Version string `json:"version,omitempty"`

	// Btrfs and Rsync name the binaries to invoke. They may be bare names
	// resolved on $PATH, or absolute paths.
	Btrfs string `json:"btrfs"`
	Rsync string `json:"rsync"`

	// RsyncArgs are extra flags appended to the transfer command line after
	// the standard flags, before the two paths.
	RsyncArgs []string `json:"rsyncArgs,omitempty"`
}

func (t Tool) getVersion() string {
	return t.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// Default returns the built-in tool configuration.
func Default() Tool {
	return Tool{
		Version: SupportedToolConfigVersion,
		Btrfs:   "btrfs",
		Rsync:   "rsync",
	}
}

// ParseTool attempts to parse the Tool config stored in the default path.
// Running without a config file is the normal case, so a missing file just
// returns the defaults.
func ParseTool() (Tool, error) {
	path, err := GetToolConfigPath()
	if err != nil {
		return Tool{}, errors.WithContext(err, "expand config path")
	}

	config := Default()
	if err := parseConfig(path, &config, SupportedToolConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Default(), nil
		}
		return Tool{}, errors.WithContext(err, "parse")
	}
	return config, nil
}

// WriteTool saves the Tool config to the default path.
func WriteTool(cfg Tool) error {
	cfg.Version = SupportedToolConfigVersion
	path, err := GetToolConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetToolConfigPath returns the path to the snapmirror configuration. This
// path is expanded, so it can be directly passed to file operations.
func GetToolConfigPath() (string, error) {
	return homedirExpand(ToolConfigPath)
}

// GetLogPath returns the expanded path to the CLI log file.
func GetLogPath() (string, error) {
	return homedirExpand(LogPath)
}
