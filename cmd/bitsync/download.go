package main

import (
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Скачать файлы необработанных записей",
	Long: `Обходит записи processing_records с done = 0, скачивает файлы
субтитров и описаний в каталог записи и помечает запись done = 1,
если все её файлы скачались. Частично обработанные записи остаются
на следующий запуск.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close("bitsync_download")

		result, err := a.download.ProcessPending(ctx)
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
