package reflinkdiff

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapmirror/snapmirror/pkg/reflink"
)

func TestRun(t *testing.T) {
	var gotMode reflink.Mode
	var gotPaths []string
	reflinkRun = func(mode reflink.Mode, srcBase, srcTarget, dstBase, dstTarget string,
		_ io.Writer) error {
		gotMode = mode
		gotPaths = []string{srcBase, srcTarget, dstBase, dstTarget}
		return nil
	}

	err := run([]string{"apply",
		"/src/2020-03-13", "/src/2020-03-14",
		"/dst/2020-03-13", "/dst/2020-03-14"})
	require.NoError(t, err)

	assert.Equal(t, reflink.ModeApply, gotMode)
	assert.Equal(t, []string{
		"/src/2020-03-13", "/src/2020-03-14",
		"/dst/2020-03-13", "/dst/2020-03-14"}, gotPaths)
}

func TestRunUnknownMode(t *testing.T) {
	reflinkRun = func(_ reflink.Mode, _, _, _, _ string, _ io.Writer) error {
		t.Error("the differ shouldn't run with an unknown mode")
		return nil
	}

	err := run([]string{"report",
		"/src/2020-03-13", "/src/2020-03-14",
		"/dst/2020-03-13", "/dst/2020-03-14"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "report"`)
}
