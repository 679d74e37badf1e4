package main

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Выгрузить записи удалённой таблицы в staging",
	Long: `Постранично выгружает все записи многомерной таблицы,
полностью обновляет staging_records (тестовые записи сохраняются)
и печатает JSON-сводку.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close("bitsync_fetch")

		result, err := a.fetch.Fetch(ctx)
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
