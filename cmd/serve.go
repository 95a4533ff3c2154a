package cmd

import (
	"log/slog"

	"github.com/shouni/go-coloring-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// serveCmd は、生成パイプラインをHTTP APIとして公開するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "塗り絵生成のHTTP APIサーバーを起動するのだ。",
	Long: `バッチ生成・単一ページ再生成・アセット永続化・スイープを
POST /api/v1/... のJSON APIとして公開するのだ。認証は持たないので、
外部に出すときは前段のゲートウェイで守ってほしいのだ。`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&opts.ListenAddr, "listen", ":8080", "待ち受けるアドレスなのだ。")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := loadConfig()

	slog.Info("APIサーバーモードを起動するのだ！",
		"listen", opts.ListenAddr,
		"image_model", cfg.GeminiImageModel)

	return pipeline.ExecuteServe(ctx, cfg)
}
