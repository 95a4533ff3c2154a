package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-coloring-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// batchCmd は、ページ定義JSONから塗り絵ページを一括生成するのだ。
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "ページ定義JSONから塗り絵ページを一括生成するのだ。",
	Long: `シーン記述の一覧（JSON）を読み込み、各ページをウィンドウ単位で並列生成するのだ。
品質ゲートに落ちたページは強化プロンプトで自動リトライされるのだよ。
--project を指定すると、合格したページはアセットとして永続化されるのだ。`,
	RunE: batchCommand,
}

func batchCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 必須となる入力ファイルの存在チェック
	if opts.PagesFile == "" && !isStdin() {
		return fmt.Errorf("ページ定義（--pages-file）を指定してほしいのだ")
	}
	if opts.PagesFile == "" {
		opts.PagesFile = "-"
	}

	cfg := loadConfig()

	slog.Info("バッチ生成モードを起動するのだ！",
		"pages_file", opts.PagesFile,
		"concurrency", opts.Concurrency,
		"image_model", cfg.GeminiImageModel,
		"output_dir", opts.OutputImageDir)

	return pipeline.ExecuteBatch(ctx, cfg)
}
