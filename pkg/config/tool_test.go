package config

import (
	"fmt"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

func TestParseTool(t *testing.T) {
	out := ".snapmirror.yaml"
	toolEmptyVersion := Tool{
		Btrfs: "/usr/local/bin/btrfs",
		Rsync: "/usr/local/bin/rsync",
	}
	toolCorrectVersion := Tool{
		Version:   SupportedToolConfigVersion,
		Btrfs:     "/usr/local/bin/btrfs",
		Rsync:     "/usr/local/bin/rsync",
		RsyncArgs: []string{"--bwlimit=10m"},
	}
	toolIncorrectVersion := Tool{
		Version: "incorrect_version",
		Btrfs:   "/usr/local/bin/btrfs",
		Rsync:   "/usr/local/bin/rsync",
	}
	toolEmptyVersionString, err := yaml.Marshal(toolEmptyVersion)
	assert.NoError(t, err)
	toolCorrectVersionString, err := yaml.Marshal(toolCorrectVersion)
	assert.NoError(t, err)
	toolIncorrectVersionString, err := yaml.Marshal(toolIncorrectVersion)
	assert.NoError(t, err)

	tests := []struct {
		input     []byte
		expConfig Tool
		expError  error
	}{
		{
			input: toolEmptyVersionString,
			expConfig: Tool{
				Version: InitialToolConfigVersion,
				Btrfs:   "/usr/local/bin/btrfs",
				Rsync:   "/usr/local/bin/rsync",
			},
			expError: nil,
		},
		{
			input:     toolCorrectVersionString,
			expConfig: toolCorrectVersion,
			expError:  nil,
		},
		{
			input:     toolIncorrectVersionString,
			expConfig: Tool{},
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedToolConfigVersion,
				actual: toolIncorrectVersion.Version,
			}, "parse"),
		},
		{
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedToolConfigVersion)),
			expConfig: Tool{},
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, out,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
		{
			input: []byte(`
version: incorrect_version
extra: fields
`),
			expConfig: Tool{},
			expError: errors.WithContext(incompatibleVersionError{
				path:   out,
				exp:    SupportedToolConfigVersion,
				actual: "incorrect_version",
			}, "parse"),
		},
	}

	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return out, nil
	}
	for _, test := range tests {
		err := afero.WriteFile(fs, out, test.input, 0644)
		assert.NoError(t, err)
		config, err := ParseTool()
		assert.Equal(t, test.expConfig, config)
		assert.Equal(t, test.expError, err)
	}
}

func TestParseToolMissingFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return ".snapmirror.yaml", nil
	}

	config, err := ParseTool()
	assert.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestWriteTool(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return ".snapmirror.yaml", nil
	}

	assert.NoError(t, WriteTool(Tool{
		Btrfs: "/sbin/btrfs",
		Rsync: "rsync",
	}))

	contents, err := afero.ReadFile(fs, ".snapmirror.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "btrfs: /sbin/btrfs\nrsync: rsync\nversion: v1alpha1\n",
		string(contents))

	config, err := ParseTool()
	assert.NoError(t, err)
	assert.Equal(t, Tool{
		Version: SupportedToolConfigVersion,
		Btrfs:   "/sbin/btrfs",
		Rsync:   "rsync",
	}, config)
}

func TestParseToolKeepsDefaultsForOmittedFields(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return ".snapmirror.yaml", nil
	}

	input := []byte("btrfs: /sbin/btrfs\n")
	assert.NoError(t, afero.WriteFile(fs, ".snapmirror.yaml", input, 0644))

	config, err := ParseTool()
	assert.NoError(t, err)
	assert.Equal(t, Tool{
		Version: SupportedToolConfigVersion,
		Btrfs:   "/sbin/btrfs",
		Rsync:   "rsync",
	}, config)
}
