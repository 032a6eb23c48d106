package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earthquake-city/quake-alerts/internal/version"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "version: "+version.Version)
	assert.Nil(t, appHandle)
}

func TestTestAlertFlags(t *testing.T) {
	f := testAlertCmd.Flags()

	require.NoError(t, f.Parse([]string{"--kind", "twitter", "--magnitude", "6.2", "--dry-run"}))
	assert.Equal(t, "twitter", string(testAlertOpts.Kind))
	assert.Equal(t, 6.2, testAlertOpts.Magnitude)
	assert.True(t, testAlertOpts.DryRun)
}

func TestPreviewFlags(t *testing.T) {
	f := previewCmd.Flags()

	require.NoError(t, f.Parse([]string{"--hours", "6", "--out", "tmp"}))
	assert.Equal(t, 6, previewOpts.Hours)
	assert.Equal(t, "tmp", previewOpts.OutDir)
}
