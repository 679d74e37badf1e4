package main

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Перенести новые записи из staging в processing",
	Long: `Сверяет staging_records с processing_records: новые записи
вставляются с done = 0 (не более лимита за запуск), существующие
перезаписываются с безусловным сбросом done. Пустой staging
заполняется тестовыми записями.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close("bitsync_sync")

		result, err := a.sync.Sync(ctx)
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
