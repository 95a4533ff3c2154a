package builder

import (
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-coloring-kit/internal/config"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持します。
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config     *config.Config          // 環境変数から読み込まれたグローバルな設定（APIキー、モデル名など）
	Options    config.GenerateOptions  // コマンドラインから渡された実行時の設定
	Reader     remoteio.InputReader    // 外部データやページ定義の読み込みに使用する入力元
	Writer     remoteio.OutputWriter   // 生成された画像やJSONを保存するための出力先
	aiClient   gemini.GenerativeModel  // Gemini との通信に使う共通クライアント
	httpClient httpkit.ClientInterface // 外部APIとの通信に使う共通クライアント
}

// NewAppContext は AppContext の新しいインスタンスを生成します。
func NewAppContext(
	cfg *config.Config,
	httpClient httpkit.ClientInterface,
	aiClient gemini.GenerativeModel,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
) AppContext {
	return AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		aiClient:   aiClient,
		httpClient: httpClient,
		Reader:     reader,
		Writer:     writer,
	}
}
