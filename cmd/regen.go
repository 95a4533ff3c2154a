package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-coloring-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// regenCmd は、単一ページをリトライパイプライン経由で再生成するのだ。
var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "シーン記述1件から塗り絵ページを1枚だけ生成するのだ。",
	Long: `--prompt で与えたシーン記述に対して、コンパイル→生成→品質ゲートの
リトライループを1ページ分だけ実行するのだ。バッチで失敗したページの
やり直しや、しきい値調整の確認に便利なのだよ。`,
	RunE: regenCommand,
}

func init() {
	regenCmd.Flags().StringVarP(&opts.Prompt, "prompt", "p", "", "生成するシーンの記述なのだ。")
}

func regenCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.Prompt == "" {
		return fmt.Errorf("シーン記述（--prompt）を指定してほしいのだ")
	}

	// --output-file がユーザーによって指定されなかった場合、
	// regenコマンド固有のデフォルト値を設定する
	if !cmd.Flags().Changed("output-file") {
		opts.OutputFile = "output/pages/page_001.png"
	}

	cfg := loadConfig()

	slog.Info("単一ページ再生成モードを起動するのだ！",
		"size", opts.Size,
		"max_attempts", opts.MaxAttempts,
		"output", opts.OutputFile)

	return pipeline.ExecuteRegenerate(ctx, cfg)
}
