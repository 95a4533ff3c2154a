package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-coloring-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

var suggestPageCount int

// suggestCmd は、文章からシーン候補の一覧（JSON）を生成するのだ。
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "文章からシーン候補の一覧（JSON）を生成するのだ。",
	Long: `URLやファイルから本文を抽出し、塗り絵ページに向いたシーン候補を
JSON形式で出力するのだ。出力はそのまま batch コマンドの入力になるのだよ。`,
	RunE: suggestCommand,
}

func init() {
	suggestCmd.Flags().StringVarP(&opts.ScriptURL, "script-url", "u", "", "本文を取得するWebページのURLなのだ。")
	suggestCmd.Flags().StringVar(&opts.ScriptFile, "script-file", "", "本文の入力ファイルのパス（'-'で標準入力なのだ）。")
	suggestCmd.Flags().IntVar(&suggestPageCount, "page-count", 8, "提案するシーンの数なのだ。")
}

func suggestCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.ScriptURL == "" && opts.ScriptFile == "" && !isStdin() {
		return fmt.Errorf("ソース（--script-url または --script-file）を指定してほしいのだ")
	}
	if opts.ScriptURL == "" && opts.ScriptFile == "" {
		opts.ScriptFile = "-"
	}

	// --output-file がユーザーによって指定されなかった場合、
	// suggestコマンド固有のデフォルト値を設定する
	if !cmd.Flags().Changed("output-file") {
		opts.OutputFile = "output/pages.json"
	}

	cfg := loadConfig()

	slog.Info("シーン候補生成モードを起動するのだ！",
		"mode", opts.Mode,
		"page_count", suggestPageCount,
		"text_model", cfg.GeminiModel,
		"output", opts.OutputFile)

	return pipeline.ExecuteSuggest(ctx, cfg, suggestPageCount)
}
