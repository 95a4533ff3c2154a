package prompts

import (
	"fmt"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// 塗り絵ページとして成立するために、コンパイル済みプロンプトへ必ず含めるべき
// 制約フラグメントの定義です。ここの文言は品質ゲートの再試行文言と対になっています。
const (
	// FragmentOutlineOnly は「純黒の輪郭線のみ」を強制する指示です。
	FragmentOutlineOnly = "pure black outline line art on a pure white background, coloring book style"

	// FragmentNoFill は塗りつぶし禁止の指示です。interior regions の文言は変更しないこと。
	FragmentNoFill = "no solid black fills, all interior regions must remain white and open for coloring"

	// FragmentNoShading は陰影・グラデーション禁止の指示です。
	FragmentNoShading = "no shading, no gradients, no gray tones, no crosshatching"

	// FragmentNoBorder は外枠・フレーム禁止の指示です。
	FragmentNoBorder = "no border, no frame, no margin lines around the artwork"

	// FragmentBottomFill は下端の空白帯を禁止する指示です。縦長・横長キャンバスで要求されます。
	FragmentBottomFill = "the artwork must extend all the way to the bottom edge, no empty band at the bottom"
)

// coverageFragment はキャンバス占有率の指示を生成します。
// storybook モードは場面の連続性を優先して占有率をわずかに緩めます。
func coverageFragment(mode domain.Mode, size domain.CanvasSize) string {
	percent := 90
	if mode == domain.ModeStorybook {
		percent = 85
	}
	w, h := size.Dimensions()
	return fmt.Sprintf("the scene must fill at least %d%% of the %dx%d canvas edge to edge", percent, w, h)
}

// RequiredFragments は指定されたモードとキャンバスサイズに対して、
// コンパイル済みプロンプトに必ず含まれるべきフラグメントの一覧を返します。
func RequiredFragments(mode domain.Mode, size domain.CanvasSize) []string {
	fragments := []string{
		FragmentOutlineOnly,
		FragmentNoFill,
		FragmentNoShading,
		FragmentNoBorder,
		coverageFragment(mode, size),
	}
	if size.IsPortrait() || size.IsLandscape() {
		fragments = append(fragments, FragmentBottomFill)
	}
	return fragments
}

// reinforcementTiers は再試行時にプロンプトへ追加する強調ブロックです。
// レベル k は tiers[0..k] を累積適用します。過去の制約を取り除くことは決してありません。
var reinforcementTiers = []string{
	"", // レベル0はベースライン。追加の強調なし。
	`### RETRY EMPHASIS (LEVEL 1) ###
- ABSOLUTELY NO solid black fills. NO filled-in areas. Outlines ONLY.
- Every enclosed shape must have a WHITE interior that a child can color.`,
	`### RETRY EMPHASIS (LEVEL 2: STRICTEST) ###
- THIS IS A COLORING BOOK PAGE. ONLY thin-to-medium black outlines on white.
- If any region would be black, draw its OUTLINE instead and leave it white.
- NO borders, NO shading, NO gray, NO texture fills. White background only.`,
}

// MaxReinforcementLevel は強調レベルの上限です。
var MaxReinforcementLevel = len(reinforcementTiers) - 1

// ReinforcementBlock はレベル 0..level の強調ブロックを累積した文字列を返します。
func ReinforcementBlock(level int) string {
	if level < 0 {
		level = 0
	}
	if level > MaxReinforcementLevel {
		level = MaxReinforcementLevel
	}
	var block string
	for i := 1; i <= level; i++ {
		if block != "" {
			block += "\n\n"
		}
		block += reinforcementTiers[i]
	}
	return block
}
