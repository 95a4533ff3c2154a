package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-coloring-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は、全サブコマンドで共有するCLIオプションの集合なのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- ソース入力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.PagesFile, "pages-file", "f", "", "ページ定義JSONのパス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.CharacterConfig, "char-config", "c", "", "キャラクターの視覚情報を定義したJSONパスなのだ。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputFile, "output-file", "o", "", "保存パス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputImageDir, "output-image-dir", "i", config.DefaultLocalImageDir, "生成された画像を保存するディレクトリ（ローカル or gs://...）なのだ。")

	// --- スタイル設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.Size, "size", "portrait", "キャンバスサイズ（square / portrait / landscape）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Complexity, "complexity", "medium", "線画の複雑度（simple / medium / detailed）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.LineThickness, "line-thickness", "medium", "輪郭線の太さ（thin / medium / bold）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Mode, "mode", "m", "theme", "生成モード（storybook / theme）なのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", config.DefaultModel, "使用する Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像生成に使用する Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "Webリクエストのタイムアウトなのだ。")

	// --- リトライ・並列実行の制御 ---
	rootCmd.PersistentFlags().IntVar(&opts.Concurrency, "concurrency", config.DefaultConcurrency, "1ウィンドウで並列生成するページ数（1〜3）なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxAttempts, "max-attempts", config.DefaultMaxAttempts, "1ページあたりの生成試行の上限なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.WindowDelay, "window-delay", config.DefaultWindowDelay, "ウィンドウ間の待機時間なのだ。")

	// --- アセット永続化関連 ---
	rootCmd.PersistentFlags().StringVar(&opts.BatchProjectID, "project", "", "指定すると合格ページをアセットとして永続化するのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.UserID, "user", "", "アセットの所有ユーザーIDなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Plan, "plan", "free", "保持期間のプラン（free / basic / pro）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", config.DefaultDBPath, "アセットメタデータのSQLiteパスなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.StorageDir, "storage-dir", config.DefaultStorageDir, "アセット本体を保存するディレクトリなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"ap-coloring-go",
		addAppFlags,
		preRunAppE,
		batchCmd,
		regenCmd,
		suggestCmd,
		sweepCmd,
		serveCmd,
	)
}

// loadConfig は環境変数の基本設定にCLIオプションを重ねるのだ。
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts
	return cfg
}

func isStdin() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
