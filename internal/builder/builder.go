package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	imagekit "github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-web-exact/v2/pkg/extract"
	"google.golang.org/genai"

	"github.com/shouni/go-coloring-kit/internal/config"
	"github.com/shouni/go-coloring-kit/internal/runner"
	"github.com/shouni/go-coloring-kit/pkg/asset"
	"github.com/shouni/go-coloring-kit/pkg/domain"
	"github.com/shouni/go-coloring-kit/pkg/orchestrator"
	"github.com/shouni/go-coloring-kit/pkg/prompts"
	"github.com/shouni/go-coloring-kit/pkg/quality"
	"github.com/shouni/go-coloring-kit/pkg/scheduler"
	"github.com/shouni/go-coloring-kit/pkg/synth"
)

const defaultGeminiTemperature = float32(0.2)

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// initializeImageGenerator は gemini-image-kit の ImageGenerator を初期化します。
func initializeImageGenerator(appCtx *AppContext) (imagekit.ImageGenerator, error) {
	imgCache := cache.New(30*time.Minute, 1*time.Hour)
	cacheTTL := 1 * time.Hour

	core, err := imagekit.NewGeminiImageCore(appCtx.httpClient, imgCache, cacheTTL)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCoreの初期化に失敗しました: %w", err)
	}

	imgGen, err := imagekit.NewGeminiGenerator(core, appCtx.aiClient, appCtx.Config.GeminiImageModel)
	if err != nil {
		return nil, fmt.Errorf("GeminiGeneratorの初期化に失敗しました: %w", err)
	}
	return imgGen, nil
}

// LoadProfile は --char-config が指定されていればプロファイルを読み込みます。
// 未指定なら nil を返し、キャラクター一貫性の仕組みは無効になります。
func LoadProfile(appCtx *AppContext) (*domain.CharacterProfile, error) {
	if appCtx.Options.CharacterConfig == "" {
		return nil, nil
	}
	profile, err := domain.LoadCharacterProfile(appCtx.Options.CharacterConfig)
	if err != nil {
		return nil, fmt.Errorf("キャラクタープロファイルの取得に失敗しました: %w", err)
	}
	return profile, nil
}

// BuildPageOrchestrator は1ページ分のリトライステートマシンを構築します。
func BuildPageOrchestrator(appCtx *AppContext, style domain.StyleConfig, profile *domain.CharacterProfile) (*orchestrator.Orchestrator, error) {
	return BuildPageOrchestratorWithChecks(appCtx, style, profile, quality.AllChecks())
}

// BuildPageOrchestratorWithChecks は品質チェックの選択を指定してステートマシンを構築します。
func BuildPageOrchestratorWithChecks(appCtx *AppContext, style domain.StyleConfig, profile *domain.CharacterProfile, checks quality.Checks) (*orchestrator.Orchestrator, error) {
	imgGen, err := initializeImageGenerator(appCtx)
	if err != nil {
		return nil, err
	}

	synthesizer := synth.NewGeminiSynthesizer(imgGen, config.DefaultSynthInterval, config.DefaultSynthTimeout).
		WithCharacterSeed(profile)

	checker := quality.NewHashChecker(&http.Client{Timeout: appCtx.Options.HTTPTimeout})
	gate := quality.NewGate(appCtx.Config.Thresholds(), checker).WithChecks(checks)

	compiler := prompts.NewPagePromptBuilder(style, profile)

	opts := orchestrator.DefaultOptions()
	if appCtx.Options.MaxAttempts > 0 {
		opts.MaxAttempts = appCtx.Options.MaxAttempts
	}

	return orchestrator.New(compiler, synthesizer, gate, style, profile, opts), nil
}

// BuildBatchScheduler はバッチ全体のウィンドウ実行を構築します。
func BuildBatchScheduler(appCtx *AppContext, style domain.StyleConfig, profile *domain.CharacterProfile) (*scheduler.BatchScheduler, error) {
	orch, err := BuildPageOrchestrator(appCtx, style, profile)
	if err != nil {
		return nil, fmt.Errorf("Orchestratorの構築に失敗しました: %w", err)
	}

	opts := scheduler.Options{
		Concurrency: appCtx.Options.Concurrency,
		WindowDelay: appCtx.Options.WindowDelay,
	}
	if opts.WindowDelay == 0 {
		opts.WindowDelay = config.DefaultWindowDelay
	}
	return scheduler.New(orch, opts), nil
}

// BuildAssetManager はアセットライフサイクル管理（永続化とスイープ）を構築します。
func BuildAssetManager(appCtx *AppContext) (*asset.Manager, *asset.Store, error) {
	dbPath := appCtx.Options.DBPath
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	store, err := asset.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("アセットストアのオープンに失敗しました: %w", err)
	}

	storageDir := appCtx.Options.StorageDir
	if storageDir == "" {
		storageDir = config.DefaultStorageDir
	}
	storage := asset.NewFSStorage(storageDir)

	return asset.NewManager(storage, store, asset.DefaultRetention()), store, nil
}

// BuildSceneSuggester はシーン候補を生成する Runner を構築します。
func BuildSceneSuggester(appCtx *AppContext) (*runner.SceneSuggestRunner, error) {
	extractor, err := extract.NewExtractor(appCtx.httpClient)
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化に失敗しました: %w", err)
	}
	return runner.NewSceneSuggestRunner(appCtx.Config, extractor, appCtx.aiClient, appCtx.Reader), nil
}
