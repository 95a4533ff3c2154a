package prompt

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
)

const (
	ModeStorybook = "storybook"
	ModeTheme     = "theme"
)

//go:embed storybook.md
var storybookPrompt string

//go:embed theme.md
var themePrompt string

// modeTemplates はモードとテンプレート文字列を紐づけるマップです。
var modeTemplates = map[string]string{
	ModeStorybook: storybookPrompt,
	ModeTheme:     themePrompt,
}

// TemplateData はシーン提案プロンプトのテンプレートに渡すデータ構造です。
type TemplateData struct {
	InputText     string
	PageCount     int
	CharacterName string
}

// Build は、指定されたモードに対応するテンプレートを展開してプロンプト文字列を返します。
func Build(mode string, data TemplateData) (string, error) {
	content, ok := modeTemplates[mode]
	if !ok {
		supported := slices.Collect(maps.Keys(modeTemplates))
		slices.Sort(supported)
		return "", fmt.Errorf("サポートされていないモード: '%s'。サポートされているモードは [%s] です",
			mode, strings.Join(supported, ", "))
	}

	tmpl, err := template.New(mode).Parse(content)
	if err != nil {
		return "", fmt.Errorf("プロンプトテンプレート '%s' の解析に失敗しました: %w", mode, err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレートの実行に失敗しました: %w", err)
	}
	return sb.String(), nil
}
