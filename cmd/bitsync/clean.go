package main

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Удалить тестовые записи из обеих таблиц",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close("bitsync_clean")

		result, err := a.clean.Clean(ctx)
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
