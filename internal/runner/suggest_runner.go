package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-web-exact/v2/pkg/extract"

	"github.com/shouni/go-coloring-kit/internal/config"
	"github.com/shouni/go-coloring-kit/internal/prompt"
	"github.com/shouni/go-coloring-kit/pkg/domain"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// suggestionResponse は AI モデルから返されるシーン候補一覧の構造です。
type suggestionResponse struct {
	Pages []domain.ScenePrompt `json:"pages"`
}

// SceneSuggestRunner は、URL または ファイルの本文からシーン候補を生成します。
// 提案されたシーンは通常の呼び出し側入力としてパイプラインに渡されるだけで、
// リトライコアの一部ではありません。
type SceneSuggestRunner struct {
	cfg       *config.Config
	extractor *extract.Extractor
	aiClient  gemini.GenerativeModel
	reader    remoteio.InputReader
}

// NewSceneSuggestRunner は依存関係を注入して初期化します。
func NewSceneSuggestRunner(
	cfg *config.Config,
	ext *extract.Extractor,
	ai gemini.GenerativeModel,
	r remoteio.InputReader,
) *SceneSuggestRunner {
	return &SceneSuggestRunner{
		cfg:       cfg,
		extractor: ext,
		aiClient:  ai,
		reader:    r,
	}
}

// Run は本文を抽出し、Gemini を用いてシーン候補の一覧を生成します。
func (sr *SceneSuggestRunner) Run(ctx context.Context, mode string, pageCount int, characterName string) ([]domain.ScenePrompt, error) {
	inputText, err := sr.loadSource(ctx)
	if err != nil {
		return nil, err
	}

	data := prompt.TemplateData{
		InputText:     inputText,
		PageCount:     pageCount,
		CharacterName: characterName,
	}
	finalPrompt, err := prompt.Build(mode, data)
	if err != nil {
		return nil, fmt.Errorf("プロンプト生成に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "シーン候補の生成を開始します", "model", sr.cfg.GeminiModel, "pages", pageCount)
	resp, err := sr.aiClient.GenerateContent(ctx, finalPrompt, sr.cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("シーン候補の生成に失敗しました: %w", err)
	}

	scenes, err := sr.parseResponse(resp.Text)
	if err != nil {
		return nil, err
	}
	return scenes, nil
}

// loadSource は --script-url または --script-file から本文を取得します。
func (sr *SceneSuggestRunner) loadSource(ctx context.Context) (string, error) {
	opts := sr.cfg.Options
	if opts.ScriptURL != "" {
		text, _, err := sr.extractor.FetchAndExtractText(ctx, opts.ScriptURL)
		if err != nil {
			return "", fmt.Errorf("URLからの本文抽出に失敗しました: %w", err)
		}
		return text, nil
	}
	if opts.ScriptFile != "" {
		rc, err := sr.reader.Open(ctx, opts.ScriptFile)
		if err != nil {
			return "", fmt.Errorf("入力ファイル '%s' の読み込みに失敗しました: %w", opts.ScriptFile, err)
		}
		defer rc.Close()
		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, rc); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	return "", fmt.Errorf("入力ソース（--script-url または --script-file）を指定してください")
}

// parseResponse は AI 応答からJSONを取り出し、シーン候補一覧に変換します。
func (sr *SceneSuggestRunner) parseResponse(raw string) ([]domain.ScenePrompt, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		// Fallback 1: 最外周の JSON オブジェクトを探す。
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			// Fallback 2: 応答全体を JSON とみなす。
			rawJSON = raw
		}
	}

	var parsed suggestionResponse
	if err := json.Unmarshal([]byte(rawJSON), &parsed); err != nil {
		return nil, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	if len(parsed.Pages) == 0 {
		return nil, fmt.Errorf("シーン候補が1件も得られませんでした")
	}

	// ページ番号の欠落は入力順で補完する。
	for i := range parsed.Pages {
		if parsed.Pages[i].PageIndex < 1 {
			parsed.Pages[i].PageIndex = i + 1
		}
	}
	return parsed.Pages, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
