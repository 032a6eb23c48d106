package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/earthquake-city/quake-alerts/internal/app"
)

var testAlertOpts app.TestAlertOptions

var testAlertCmd = &cobra.Command{
	Use:   "test-alert",
	Short: "Send a synthetic [TEST] alert to the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if testAlertOpts.Kind != "" && !testAlertOpts.Kind.Valid() {
			return fmt.Errorf("unknown channel type %q", testAlertOpts.Kind)
		}

		results, previews, err := getApp().TestAlert(cmd.Context(), testAlertOpts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if testAlertOpts.DryRun {
			names := make([]string, 0, len(previews))
			for name := range previews {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				msg := previews[name]
				fmt.Fprintf(out, "=== %s ===\nSubject: %s\n%s\n", name, msg.Subject, msg.Text)
				if len(msg.Image) > 0 {
					fmt.Fprintf(out, "(map image, %d bytes)\n", len(msg.Image))
				}
				fmt.Fprintln(out)
			}
			return nil
		}

		failed := 0
		for _, r := range results {
			if r.Success {
				fmt.Fprintf(out, "✅ %s (%s)\n", r.Channel, r.Kind)
				continue
			}
			failed++
			fmt.Fprintf(out, "❌ %s (%s): %s\n", r.Channel, r.Kind, r.Error)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d test alerts failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	testAlertCmd.Flags().StringVar(&testAlertOpts.Channel, "channel", "", "Only send to the channel with this name")
	testAlertCmd.Flags().StringVar((*string)(&testAlertOpts.Kind), "kind", "", "Only send to channels of this type (slack, twitter, whatsapp, email)")
	testAlertCmd.Flags().Float64Var(&testAlertOpts.Magnitude, "magnitude", 5.5, "Magnitude of the synthetic event")
	testAlertCmd.Flags().BoolVar(&testAlertOpts.DryRun, "dry-run", false, "Print the rendered messages instead of sending them")
}
