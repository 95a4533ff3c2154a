package config

import (
	"strconv"
	"time"

	"github.com/shouni/go-utils/envutil"

	"github.com/shouni/go-coloring-kit/pkg/domain"
	"github.com/shouni/go-coloring-kit/pkg/quality"
)

// デフォルト値の定義です。
const (
	DefaultModel      = "gemini-3-flash-preview"
	DefaultImageModel = "gemini-3-pro-image-preview"

	DefaultHTTPTimeout  = 30 * time.Second
	DefaultSynthTimeout = 120 * time.Second // 画像合成1呼び出しのハードタイムアウト

	DefaultSynthInterval    = 20 * time.Second // プロバイダー呼び出しの最小間隔
	DefaultWindowDelay      = 10 * time.Second // バッチウィンドウ間の待機
	DefaultConcurrency      = 2
	DefaultMaxAttempts      = 3
	DefaultTransientBackoff = 5 * time.Second

	DefaultLocalImageDir = "output/pages"       // 生成ページ画像のデフォルト保存先
	DefaultDBPath        = "output/coloring.db" // アセットメタデータの保存先
	DefaultStorageDir    = "output/assets"      // 永続化アセット本体の保存先
	DefaultSweepBatch    = 100
)

// Config はアプリケーション全体の環境設定（APIキーやモデル設定）を保持する構造体です。
type Config struct {
	ProjectID        string
	LocationID       string
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返します。
func LoadConfig() *Config {
	return &Config{
		ProjectID:        envutil.GetEnv("PROJECT_ID", ""),
		LocationID:       envutil.GetEnv("REGION", ""),
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
	}
}

// Thresholds は品質ゲートのしきい値を返します。プロダクト調整値なので
// 環境変数で上書きできます（分析的に導出される不変条件ではありません）。
func (c *Config) Thresholds() quality.Thresholds {
	t := quality.DefaultThresholds()
	t.MaxBlackRatio[domain.ComplexitySimple] = envFloat("QUALITY_MAX_BLACK_SIMPLE", t.MaxBlackRatio[domain.ComplexitySimple])
	t.MaxBlackRatio[domain.ComplexityMedium] = envFloat("QUALITY_MAX_BLACK_MEDIUM", t.MaxBlackRatio[domain.ComplexityMedium])
	t.MaxBlackRatio[domain.ComplexityDetailed] = envFloat("QUALITY_MAX_BLACK_DETAILED", t.MaxBlackRatio[domain.ComplexityDetailed])
	t.MinCoverage = envFloat("QUALITY_MIN_COVERAGE", t.MinCoverage)
	t.MaxRunFraction = envFloat("QUALITY_MAX_RUN_FRACTION", t.MaxRunFraction)
	return t
}

func envFloat(key string, fallback float64) float64 {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータです。
type GenerateOptions struct {
	// AIモデル設定
	AIModel    string // --model
	ImageModel string // --image-model

	// ソース入力関連
	PagesFile       string // --pages-file: ScenePrompt 一覧のJSONパス（'-'で標準入力）
	Prompt          string // --prompt: 単一ページ再生成用のシーン記述
	ScriptURL       string // --script-url: シーン候補の抽出元URL
	ScriptFile      string // --script-file: シーン候補の抽出元ファイル
	CharacterConfig string // --char-config: キャラクタープロファイルのJSONパス

	// スタイル設定
	Size          string // --size
	Complexity    string // --complexity
	LineThickness string // --line-thickness
	Mode          string // --mode

	// 実行制御
	Concurrency int           // --concurrency: 1ウィンドウの並列ページ数
	MaxAttempts int           // --max-attempts: 1ページあたりの試行上限
	WindowDelay time.Duration // --window-delay
	HTTPTimeout time.Duration // --http-timeout

	// 出力・永続化関連
	OutputFile     string // --output-file
	OutputImageDir string // --output-image-dir（ローカル or gs://...）
	BatchProjectID string // --project: 指定時は合格ページをアセットとして永続化
	UserID         string // --user
	Plan           string // --plan: 保持期間ティア
	DBPath         string // --db
	StorageDir     string // --storage-dir
	SweepBatch     int    // --batch-size: スイープの1回あたり処理件数

	// サーバー関連
	ListenAddr string // --listen
}

// Style は CLI フラグから StyleConfig を組み立てます。
func (o GenerateOptions) Style() (domain.StyleConfig, error) {
	style := domain.DefaultStyle()
	if o.Size != "" {
		size, err := domain.ParseCanvasSize(o.Size)
		if err != nil {
			return domain.StyleConfig{}, err
		}
		style.CanvasSize = size
	}
	if o.Complexity != "" {
		style.Complexity = domain.Complexity(o.Complexity)
	}
	if o.LineThickness != "" {
		style.LineThickness = domain.LineThickness(o.LineThickness)
	}
	if o.Mode != "" {
		style.Mode = domain.Mode(o.Mode)
	}
	if err := style.Validate(); err != nil {
		return domain.StyleConfig{}, err
	}
	return style, nil
}
