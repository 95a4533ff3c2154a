package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"

	"github.com/shouni/go-coloring-kit/internal/builder"
	"github.com/shouni/go-coloring-kit/internal/config"
	"github.com/shouni/go-coloring-kit/internal/server"
	"github.com/shouni/go-coloring-kit/pkg/asset"
	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// pagesFile はバッチ入力JSONの構造です。
type pagesFile struct {
	Pages []domain.ScenePrompt `json:"pages"`
}

// ExecuteBatch は、ページ定義JSONを読み込み、バッチ生成（フェーズ1）と
// 保存処理（フェーズ2）を実行します。
func ExecuteBatch(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	scenes, err := loadScenes(ctx, appCtx, cfg.Options.PagesFile)
	if err != nil {
		return err
	}

	style, err := cfg.Options.Style()
	if err != nil {
		return err
	}
	profile, err := builder.LoadProfile(appCtx)
	if err != nil {
		return err
	}

	// --- フェーズ1: バッチ生成 ---
	sched, err := builder.BuildBatchScheduler(appCtx, style, profile)
	if err != nil {
		return fmt.Errorf("BatchSchedulerの構築に失敗しました: %w", err)
	}
	result, runErr := sched.Run(ctx, scenes)

	// --- フェーズ2: 保存処理。生成の部分失敗があっても成功分は保存する ---
	if err := publishOutcomes(ctx, appCtx, result.Outcomes); err != nil {
		return err
	}

	slog.InfoContext(ctx, "バッチ処理が完了しました",
		"success", result.SuccessCount, "fail", result.FailCount)
	if runErr != nil {
		return fmt.Errorf("バッチはキャンセルにより途中終了しました: %w", runErr)
	}
	return nil
}

// ExecuteRegenerate は単一ページをリトライパイプラインで再生成します。
func ExecuteRegenerate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	style, err := cfg.Options.Style()
	if err != nil {
		return err
	}
	profile, err := builder.LoadProfile(appCtx)
	if err != nil {
		return err
	}

	orch, err := builder.BuildPageOrchestrator(appCtx, style, profile)
	if err != nil {
		return fmt.Errorf("Orchestratorの構築に失敗しました: %w", err)
	}

	scene := domain.ScenePrompt{PageIndex: 1, RawText: cfg.Options.Prompt}
	outcome := orch.Run(ctx, scene)

	if outcome.Status != domain.PageDone {
		return fmt.Errorf("ページの再生成に失敗しました: %w", outcome.LastError)
	}
	if outcome.Warning != "" {
		slog.WarnContext(ctx, "品質ゲートを通過できなかったため、最終画像をベストエフォートで返します",
			"attempts", outcome.Attempts, "warning", outcome.Warning)
	}

	outputPath := cfg.Options.OutputFile
	if outputPath == "" {
		outputPath, err = resolveOutputPath(config.DefaultLocalImageDir, "page_001.png")
		if err != nil {
			return err
		}
	}
	if err := appCtx.Writer.Write(ctx, outputPath, bytes.NewReader(outcome.ImageBytes), "image/png"); err != nil {
		return fmt.Errorf("ページ画像の保存に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "ページの再生成が完了しました", "path", outputPath, "attempts", outcome.Attempts)
	return nil
}

// ExecuteSuggest は本文からシーン候補の一覧を生成してJSONとして保存します。
func ExecuteSuggest(ctx context.Context, cfg *config.Config, pageCount int) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	profile, err := builder.LoadProfile(appCtx)
	if err != nil {
		return err
	}
	characterName := ""
	if profile != nil {
		characterName = profile.CanonicalName
	}

	suggester, err := builder.BuildSceneSuggester(appCtx)
	if err != nil {
		return err
	}

	mode := cfg.Options.Mode
	if mode == "" {
		mode = string(domain.ModeTheme)
	}
	scenes, err := suggester.Run(ctx, mode, pageCount, characterName)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(pagesFile{Pages: scenes}, "", "  ")
	if err != nil {
		return err
	}

	outputPath := cfg.Options.OutputFile
	if outputPath == "" {
		outputPath = "output/pages.json"
	}
	if err := appCtx.Writer.Write(ctx, outputPath, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("シーン候補の保存に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "シーン候補を保存しました", "count", len(scenes), "path", outputPath)
	return nil
}

// ExecuteSweep は期限切れアセットのクリーンアップスイープを実行します。
func ExecuteSweep(ctx context.Context, cfg *config.Config) error {
	manager, store, err := buildAssetManager(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	batch := cfg.Options.SweepBatch
	if batch <= 0 {
		batch = config.DefaultSweepBatch
	}
	res, err := manager.Sweep(ctx, batch)
	if err != nil {
		return fmt.Errorf("スイープの実行に失敗しました: %w", err)
	}
	for _, e := range res.Errors {
		slog.WarnContext(ctx, "スイープ中にエラーが発生しました（次回実行で再試行されます）", "error", e)
	}
	return nil
}

// ExecuteServe はHTTP APIサーバーを起動します。
func ExecuteServe(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	srv := server.New(appCtx)
	slog.InfoContext(ctx, "HTTPサーバーを起動します", "addr", cfg.Options.ListenAddr)
	return srv.Start(cfg.Options.ListenAddr)
}

// publishOutcomes は done となった各ページの画像を出力先へ保存し、
// --project 指定時はアセットとして永続化します。
func publishOutcomes(ctx context.Context, appCtx *builder.AppContext, outcomes []domain.PageOutcome) error {
	opts := appCtx.Options

	var manager *asset.Manager
	if opts.BatchProjectID != "" {
		m, store, err := builder.BuildAssetManager(appCtx)
		if err != nil {
			return err
		}
		defer store.Close()
		manager = m
	}

	imageDir := opts.OutputImageDir
	if imageDir == "" {
		imageDir = config.DefaultLocalImageDir
	}

	for _, o := range outcomes {
		if o.Status != domain.PageDone {
			slog.WarnContext(ctx, "生成に失敗したページです", "page", o.PageIndex, "error", o.LastError)
			continue
		}
		if o.Warning != "" {
			slog.WarnContext(ctx, "ベストエフォート画像です", "page", o.PageIndex, "warning", o.Warning)
		}

		fileName := fmt.Sprintf("page_%03d.png", o.PageIndex)
		outputPath, err := resolveOutputPath(imageDir, fileName)
		if err != nil {
			return err
		}
		if err := appCtx.Writer.Write(ctx, outputPath, bytes.NewReader(o.ImageBytes), "image/png"); err != nil {
			return fmt.Errorf("ページ %d の保存に失敗しました: %w", o.PageIndex, err)
		}

		if manager != nil {
			page := o.PageIndex
			_, err := manager.Persist(ctx, asset.PersistRequest{
				ProjectID:  opts.BatchProjectID,
				UserID:     opts.UserID,
				PageNumber: &page,
				AssetType:  domain.AssetPageImage,
				Plan:       opts.Plan,
				Data:       o.ImageBytes,
			})
			if err != nil {
				// ストレージ失敗は黙殺せず呼び出し元へ伝播する。
				return fmt.Errorf("ページ %d のアセット永続化に失敗しました: %w", o.PageIndex, err)
			}
		}
	}
	return nil
}

// loadScenes はページ定義JSONを読み込みます。
func loadScenes(ctx context.Context, appCtx *builder.AppContext, path string) ([]domain.ScenePrompt, error) {
	if path == "" {
		return nil, fmt.Errorf("ページ定義（--pages-file）を指定してください")
	}
	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ページ定義 '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	var pf pagesFile
	if err := json.NewDecoder(rc).Decode(&pf); err != nil {
		return nil, fmt.Errorf("ページ定義 '%s' のデコードに失敗しました: %w", path, err)
	}
	if len(pf.Pages) == 0 {
		return nil, fmt.Errorf("ページ定義にページがありません")
	}
	for _, s := range pf.Pages {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return pf.Pages, nil
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、
// アプリケーションコンテキストを初期化して返します。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	timeout := cfg.Options.HTTPTimeout
	if timeout == 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	aiClient, err := builder.InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, httpClient, aiClient, reader, writer)
	return &appCtx, nil
}

// buildAssetManager はスイープ専用の軽量な構築経路です。
// AIクライアントやGCSの初期化は不要なため setupAppContext を経由しません。
func buildAssetManager(cfg *config.Config) (*asset.Manager, *asset.Store, error) {
	appCtx := builder.AppContext{Config: cfg, Options: cfg.Options}
	return builder.BuildAssetManager(&appCtx)
}
