package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// MaxPromptLength はコンパイル済みプロンプトの最大文字数です。
// 超過した場合は自由文部分から切り詰め、制約フラグメントは常に保全します。
const MaxPromptLength = 4200

// PagePromptBuilder は、シーン記述とスタイル設定から塗り絵ページ用の
// 完全指定プロンプトを構築します。純粋なビルダーであり、同じ入力からは
// 常に同じ出力を生成します。
type PagePromptBuilder struct {
	style   domain.StyleConfig
	profile *domain.CharacterProfile
}

// NewPagePromptBuilder は新しい PagePromptBuilder を生成します。
// profile は nil 可で、その場合キャラクター一貫性ブロックは省略されます。
func NewPagePromptBuilder(style domain.StyleConfig, profile *domain.CharacterProfile) *PagePromptBuilder {
	return &PagePromptBuilder{
		style:   style,
		profile: profile.Clone(),
	}
}

// Build は指定された強調レベルでプロンプトをコンパイルします。
// hints は品質ゲートが返した再試行文言で、強調ブロックの後に追記されます。
func (b *PagePromptBuilder) Build(scene domain.ScenePrompt, level int, hints []string) (domain.CompiledPrompt, error) {
	if err := scene.Validate(); err != nil {
		return domain.CompiledPrompt{}, err
	}

	// --- 1. 自由文パート（切り詰め対象） ---
	var free strings.Builder
	free.WriteString("### SCENE ###\n")
	if scene.Title != "" {
		free.WriteString(fmt.Sprintf("- TITLE: %s\n", scene.Title))
	}
	free.WriteString(strings.TrimSpace(scene.RawText))
	free.WriteString("\n")

	if b.profile != nil {
		free.WriteString("\n")
		free.WriteString(BuildCharacterIdentitySection(b.profile))
	}

	// --- 2. 制約パート（常に保全） ---
	var tail strings.Builder
	tail.WriteString("\n")
	tail.WriteString(buildStyleSection(b.style))
	tail.WriteString("\n")
	tail.WriteString(buildForbiddenSection(b.profile))
	tail.WriteString("\n")
	tail.WriteString(buildCanvasSection(b.style))

	if block := ReinforcementBlock(level); block != "" {
		tail.WriteString("\n\n")
		tail.WriteString(block)
	}
	for _, h := range hints {
		if h = strings.TrimSpace(h); h != "" {
			tail.WriteString("\n- FIX: ")
			tail.WriteString(h)
		}
	}

	// --- 3. 必須フラグメントの走査。欠けているものは末尾にそのまま追記する ---
	text := free.String() + tail.String()
	var missing strings.Builder
	for _, frag := range RequiredFragments(b.style.Mode, b.style.CanvasSize) {
		if !strings.Contains(text, frag) {
			missing.WriteString("\n- ")
			missing.WriteString(frag)
		}
	}
	constraintTail := tail.String() + missing.String()

	// --- 4. 長さ制限。自由文を先に削り、制約は削らない ---
	freeText := free.String()
	if len(freeText)+len(constraintTail) > MaxPromptLength {
		budget := MaxPromptLength - len(constraintTail)
		if budget < 0 {
			budget = 0
		}
		freeText = truncateRunesafe(freeText, budget)
	}

	return domain.CompiledPrompt{
		PageIndex:          scene.PageIndex,
		Text:               freeText + constraintTail,
		ReinforcementLevel: level,
	}, nil
}

// BuildCharacterIdentitySection は主役キャラクターのマスター定義を出力します。
// 全ページで同一の見た目を保つよう明示的に固定します。
func BuildCharacterIdentitySection(p *domain.CharacterProfile) string {
	var sb strings.Builder
	sb.WriteString("### CHARACTER MASTER DEFINITION (STRICT IDENTITY) ###\n")
	sb.WriteString(fmt.Sprintf("- SUBJECT [%s]: This exact character appears on every page and MUST look identical on every page.\n", p.CanonicalName))
	if p.Proportions != "" {
		sb.WriteString(fmt.Sprintf("- PROPORTIONS: %s\n", p.Proportions))
	}
	if len(p.DistinguishingFeatures) > 0 {
		sb.WriteString(fmt.Sprintf("- VISUAL_FEATURES: {%s}\n", strings.Join(p.DistinguishingFeatures, ", ")))
	}
	if p.Outfit != "" {
		sb.WriteString(fmt.Sprintf("- OUTFIT: %s\n", p.Outfit))
	}
	return sb.String()
}

// buildStyleSection は複雑度と線の太さの指示を生成します。
func buildStyleSection(style domain.StyleConfig) string {
	var sb strings.Builder
	sb.WriteString("### STYLE ###\n")
	sb.WriteString(fmt.Sprintf("- %s\n", FragmentOutlineOnly))

	switch style.Complexity {
	case domain.ComplexitySimple:
		sb.WriteString("- COMPLEXITY: very simple shapes with large open areas, suitable for ages 3-5\n")
	case domain.ComplexityDetailed:
		sb.WriteString("- COMPLEXITY: intricate detailed line work, suitable for adults\n")
	default:
		sb.WriteString("- COMPLEXITY: moderate detail with a mix of large and small areas, suitable for ages 6-10\n")
	}

	switch style.LineThickness {
	case domain.LineThin:
		sb.WriteString("- LINES: thin precise outlines of uniform weight\n")
	case domain.LineBold:
		sb.WriteString("- LINES: bold thick outlines, easy for small hands to color inside\n")
	default:
		sb.WriteString("- LINES: medium-weight clean outlines of uniform thickness\n")
	}
	return sb.String()
}

// buildForbiddenSection は禁止事項ブロックを生成します。
func buildForbiddenSection(p *domain.CharacterProfile) string {
	var sb strings.Builder
	sb.WriteString("### FORBIDDEN ###\n")
	sb.WriteString(fmt.Sprintf("- %s\n", FragmentNoFill))
	sb.WriteString(fmt.Sprintf("- %s\n", FragmentNoShading))
	sb.WriteString(fmt.Sprintf("- %s\n", FragmentNoBorder))
	sb.WriteString("- no text, no letters, no watermarks, no signatures\n")
	if p != nil {
		for _, rule := range p.NegativeRules {
			sb.WriteString(fmt.Sprintf("- never: %s\n", rule))
		}
	}
	return sb.String()
}

// buildCanvasSection はキャンバス占有率と構図の指示を生成します。
func buildCanvasSection(style domain.StyleConfig) string {
	var sb strings.Builder
	sb.WriteString("### CANVAS ###\n")
	sb.WriteString(fmt.Sprintf("- %s\n", coverageFragment(style.Mode, style.CanvasSize)))
	if style.CanvasSize.IsPortrait() || style.CanvasSize.IsLandscape() {
		sb.WriteString(fmt.Sprintf("- %s\n", FragmentBottomFill))
	}
	return sb.String()
}

// truncateRunesafe は最大 n バイトに収まるようにルーン境界で切り詰めます。
func truncateRunesafe(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && len(string(runes)) > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
