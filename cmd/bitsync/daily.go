package main

import (
	"github.com/spf13/cobra"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Полный ежедневный запуск: fetch, sync, download",
	Long: `Выполняет все три этапа последовательно. Ошибка этапа не
останавливает конвейер, но итоговый код возврата ненулевой, если
хотя бы один этап провалился.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close("bitsync_daily")

		result, runErr := a.daily.Run(ctx, a.runID)

		// Сводка печатается и при частичном провале
		if err := printJSON(result); err != nil {
			return err
		}

		return runErr
	},
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}
