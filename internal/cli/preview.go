package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/earthquake-city/quake-alerts/internal/app"
)

var previewOpts app.PreviewOptions

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Summarise recent earthquakes against the alerting configuration without sending",
	RunE: func(cmd *cobra.Command, args []string) error {
		if previewOpts.Hours < 1 || previewOpts.Hours > 168 {
			return errors.New("--hours must be between 1 and 168")
		}
		return getApp().Preview(cmd.Context(), previewOpts, cmd.OutOrStdout())
	},
}

func init() {
	previewCmd.Flags().IntVar(&previewOpts.Hours, "hours", 24, "How many hours of history to preview")
	previewCmd.Flags().StringVar(&previewOpts.OutDir, "out", "test_output", "Directory for the rendered preview files")
}
