package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Perform a single monitoring run and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := getApp().Once(cmd.Context())
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))

		if !result.Success() {
			return errors.New(result.Summary() + " with errors")
		}
		return nil
	},
}
