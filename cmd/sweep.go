package cmd

import (
	"log/slog"

	"github.com/shouni/go-coloring-kit/internal/config"
	"github.com/shouni/go-coloring-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// sweepCmd は、保持期限が切れたアセットのクリーンアップを実行するのだ。
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "期限切れアセットを削除して expired に更新するのだ。",
	Long: `保持期限を過ぎた ready 状態のアセットを探し、ストレージ上の実体を削除してから
メタデータを expired に更新するのだ。途中で失敗しても次回の実行で拾い直されるので、
定期実行（cronなど）に向いているのだよ。`,
	RunE: sweepCommand,
}

func init() {
	sweepCmd.Flags().IntVar(&opts.SweepBatch, "batch-size", config.DefaultSweepBatch, "1回のスイープで処理する最大件数なのだ。")
}

func sweepCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := loadConfig()

	slog.Info("クリーンアップスイープを起動するのだ！",
		"db", opts.DBPath,
		"storage_dir", opts.StorageDir,
		"batch_size", opts.SweepBatch)

	return pipeline.ExecuteSweep(ctx, cfg)
}
