package domain

import (
	"fmt"
	"strings"
)

// Complexity は塗り絵の線画密度を表します。品質ゲートの黒比率しきい値の選択にも使われます。
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityMedium   Complexity = "medium"
	ComplexityDetailed Complexity = "detailed"
)

// LineThickness は輪郭線の太さです。
type LineThickness string

const (
	LineThin   LineThickness = "thin"
	LineMedium LineThickness = "medium"
	LineBold   LineThickness = "bold"
)

// CanvasSize は生成画像のピクセル寸法です。プロバイダがサポートする組み合わせのみを許可します。
type CanvasSize string

const (
	CanvasSquare    CanvasSize = "1024x1024"
	CanvasPortrait  CanvasSize = "1024x1536"
	CanvasLandscape CanvasSize = "1536x1024"
)

// ParseCanvasSize は "square" / "portrait" / "landscape" またはピクセル表記を CanvasSize に解決します。
func ParseCanvasSize(s string) (CanvasSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square", string(CanvasSquare):
		return CanvasSquare, nil
	case "portrait", string(CanvasPortrait):
		return CanvasPortrait, nil
	case "landscape", string(CanvasLandscape):
		return CanvasLandscape, nil
	default:
		return "", fmt.Errorf("サポートされていないキャンバスサイズです: '%s' (square, portrait, landscape から選択してください)", s)
	}
}

// Dimensions は幅と高さをピクセルで返します。
func (c CanvasSize) Dimensions() (width, height int) {
	switch c {
	case CanvasPortrait:
		return 1024, 1536
	case CanvasLandscape:
		return 1536, 1024
	default:
		return 1024, 1024
	}
}

// AspectRatio はプロバイダAPIに渡すアスペクト比文字列を返します。
func (c CanvasSize) AspectRatio() string {
	switch c {
	case CanvasPortrait:
		return "2:3"
	case CanvasLandscape:
		return "3:2"
	default:
		return "1:1"
	}
}

func (c CanvasSize) IsPortrait() bool  { return c == CanvasPortrait }
func (c CanvasSize) IsLandscape() bool { return c == CanvasLandscape }

// Mode は生成モードです。storybook は物語の連続ページ、theme は独立した1枚絵を想定します。
type Mode string

const (
	ModeStorybook Mode = "storybook"
	ModeTheme     Mode = "theme"
)

// ScenePrompt は1ページ分のシーン記述です。バッチ入力の最小単位になります。
type ScenePrompt struct {
	PageIndex int    `json:"page"`
	Title     string `json:"title,omitempty"`
	RawText   string `json:"prompt"`
}

// Validate は入力バリデーションエラーを返します。リトライ対象にはなりません。
func (s ScenePrompt) Validate() error {
	if s.PageIndex < 1 {
		return fmt.Errorf("ページ番号は1以上である必要があります: %d", s.PageIndex)
	}
	if strings.TrimSpace(s.RawText) == "" {
		return fmt.Errorf("ページ %d のシーン記述が空です", s.PageIndex)
	}
	return nil
}

// StyleConfig はバッチ全体で共有される描画スタイルです。
// バッチ実行中は読み取り専用として扱い、途中で変更してはいけません。
type StyleConfig struct {
	Complexity    Complexity
	LineThickness LineThickness
	CanvasSize    CanvasSize
	Mode          Mode
}

// DefaultStyle は標準のスタイル設定を返します。
func DefaultStyle() StyleConfig {
	return StyleConfig{
		Complexity:    ComplexityMedium,
		LineThickness: LineMedium,
		CanvasSize:    CanvasPortrait,
		Mode:          ModeTheme,
	}
}

// Validate はスタイル設定の妥当性を確認します。
func (s StyleConfig) Validate() error {
	switch s.Complexity {
	case ComplexitySimple, ComplexityMedium, ComplexityDetailed:
	default:
		return fmt.Errorf("サポートされていない複雑度です: '%s'", s.Complexity)
	}
	switch s.LineThickness {
	case LineThin, LineMedium, LineBold:
	default:
		return fmt.Errorf("サポートされていない線の太さです: '%s'", s.LineThickness)
	}
	switch s.CanvasSize {
	case CanvasSquare, CanvasPortrait, CanvasLandscape:
	default:
		return fmt.Errorf("サポートされていないキャンバスサイズです: '%s'", s.CanvasSize)
	}
	switch s.Mode {
	case ModeStorybook, ModeTheme:
	default:
		return fmt.Errorf("サポートされていないモードです: '%s'", s.Mode)
	}
	return nil
}
