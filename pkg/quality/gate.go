package quality

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// Thresholds は品質ゲートの数値しきい値です。プロダクト調整値なので
// ハードコードせず、設定として注入します。
type Thresholds struct {
	// Binarization は2値化の輝度カットオフです。これ未満の輝度を「黒」と分類します。
	Binarization uint8

	// MaxBlackRatio は複雑度ごとの黒画素比率の上限です。
	// simple ほど白い塗り領域が広くあるべきなので厳しくします。
	MaxBlackRatio map[domain.Complexity]float64

	// MaxRunFraction は走査線上の連続黒画素ランの許容長（走査幅に対する割合）です。
	MaxRunFraction float64

	// MaxLongRuns は許容長超過ランの許容本数です。これを超えるとベタ塗りと判定します。
	MaxLongRuns int

	// MinCoverage は黒画素バウンディングボックスがキャンバスに占めるべき最小割合です。
	MinCoverage float64

	// BottomBandFraction は下端余白チェックで見る帯の高さ（キャンバス高に対する割合）です。
	BottomBandFraction float64

	// AnalysisMaxWidth は画素走査前に縮小する最大幅です。0なら縮小しません。
	AnalysisMaxWidth int
}

// DefaultThresholds は代表サンプル画像に対して調整された既定値を返します。
func DefaultThresholds() Thresholds {
	return Thresholds{
		Binarization: 112,
		MaxBlackRatio: map[domain.Complexity]float64{
			domain.ComplexitySimple:   0.18,
			domain.ComplexityMedium:   0.25,
			domain.ComplexityDetailed: 0.32,
		},
		MaxRunFraction:     0.35,
		MaxLongRuns:        3,
		MinCoverage:        0.85,
		BottomBandFraction: 0.08,
		AnalysisMaxWidth:   512,
	}
}

// Report は品質ゲートの評価結果です。
type Report struct {
	Metrics domain.QualityMetrics
	Passed  bool

	// RetryReinforcement は不合格時にプロンプトコンパイラへ渡す修正指示です。
	RetryReinforcement string

	// FailureReason は不合格の機械可読な理由です（black_ratio | long_run | coverage | bottom_band）。
	FailureReason string
}

// Checks は実行するチェックの選択です。単一ページ再生成の入口では
// 呼び出し側が個別に無効化できます。
type Checks struct {
	Outline     bool
	Composition bool
	Character   bool
}

// AllChecks は全チェック有効の既定値を返します。
func AllChecks() Checks {
	return Checks{Outline: true, Composition: true, Character: true}
}

// Gate は生成画像を塗り絵ページとして受理できるか検証します。
// チェック1〜3（黒比率・長ラン・構図）は同じ画像としきい値に対して決定的です。
// チェック4（キャラクター）は外部判定器に委譲されるため非決定的でありえます。
type Gate struct {
	thresholds Thresholds
	checker    CharacterChecker // nil 可。注入されたときのみキャラクター検証を行う
	checks     Checks
}

// NewGate は新しい Gate を生成します。checker は nil 可です。
func NewGate(t Thresholds, checker CharacterChecker) *Gate {
	return &Gate{thresholds: t, checker: checker, checks: AllChecks()}
}

// WithChecks は実行するチェックを差し替えた Gate を返します。
func (g *Gate) WithChecks(c Checks) *Gate {
	clone := *g
	clone.checks = c
	return &clone
}

// Evaluate は画像バイト列をデコードし、全チェックを実行して Report を返します。
// デコード不能な入力のみエラーになります。チェック不合格はエラーではなく Report で表現します。
func (g *Gate) Evaluate(ctx context.Context, imageBytes []byte, style domain.StyleConfig, profile *domain.CharacterProfile) (Report, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return Report{}, fmt.Errorf("生成画像のデコードに失敗しました: %w", err)
	}

	bm := binarize(img, g.thresholds.Binarization, g.thresholds.AnalysisMaxWidth)

	var report Report
	report.Metrics.BlackRatio = bm.blackRatio()
	report.Metrics.LongRunCount = bm.longRunCount(g.thresholds.MaxRunFraction)

	// --- チェック1: 黒比率 ---
	maxRatio, ok := g.thresholds.MaxBlackRatio[style.Complexity]
	if !ok {
		maxRatio = g.thresholds.MaxBlackRatio[domain.ComplexityMedium]
	}
	ratioOK := !g.checks.Outline || report.Metrics.BlackRatio <= maxRatio

	// --- チェック2: 長ラン ---
	runOK := !g.checks.Outline || report.Metrics.LongRunCount <= g.thresholds.MaxLongRuns

	report.Metrics.PassedOutline = ratioOK && runOK

	// --- チェック3: 構図（カバレッジと下端余白） ---
	coverage := bm.coverage()
	bottomOK := true
	coverageOK := true
	if g.checks.Composition {
		if style.CanvasSize.IsPortrait() || style.CanvasSize.IsLandscape() {
			bottomOK = bm.bottomBandOccupied(g.thresholds.BottomBandFraction)
		}
		coverageOK = coverage >= g.thresholds.MinCoverage
	}
	report.Metrics.PassedComposition = coverageOK && bottomOK

	// --- チェック4: キャラクター一貫性（ソフトシグナル） ---
	if g.checks.Character && profile != nil && g.checker != nil {
		passed, err := g.checker.Check(ctx, imageBytes, profile)
		if err != nil {
			// 判定器の失敗でページを落とさない。シグナル欠落として扱う。
			slog.WarnContext(ctx, "キャラクター判定器の実行に失敗しました", "character", profile.CanonicalName, "error", err)
		} else {
			report.Metrics.PassedCharacter = &passed
		}
	}

	switch {
	case !ratioOK:
		report.FailureReason = "black_ratio"
		report.RetryReinforcement = fmt.Sprintf(
			"the previous image was %.0f%% black pixels; remove ALL solid black fills and keep every interior region pure white",
			report.Metrics.BlackRatio*100)
	case !runOK:
		report.FailureReason = "long_run"
		report.RetryReinforcement = "the previous image contained large solid black regions; replace filled areas with thin outlines only"
	case !coverageOK:
		report.FailureReason = "coverage"
		report.RetryReinforcement = fmt.Sprintf(
			"the previous artwork covered only %.0f%% of the canvas; enlarge the scene so it fills the canvas edge to edge",
			coverage*100)
	case !bottomOK:
		report.FailureReason = "bottom_band"
		report.RetryReinforcement = "the previous image left an empty band at the bottom; extend the scene all the way to the bottom edge"
	default:
		report.Passed = true
	}

	// キャラクター不一致は他のチェックが通っていれば不合格にはしない（ソフトシグナル）。
	// ただし他チェックで再試行する際の修正指示としては利用する。
	if !report.Passed && report.Metrics.PassedCharacter != nil && !*report.Metrics.PassedCharacter {
		report.RetryReinforcement += "; keep the main character visually identical to the declared distinguishing features"
	}

	return report, nil
}

// bitmap は2値化済みの画素格子です。
type bitmap struct {
	w, h int
	dark []bool
}

// binarize は画像を縮小してから輝度しきい値で2値化します。
func binarize(img image.Image, cutoff uint8, maxWidth int) *bitmap {
	bounds := img.Bounds()
	if maxWidth > 0 && bounds.Dx() > maxWidth {
		newH := bounds.Dy() * maxWidth / bounds.Dx()
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		bounds = dst.Bounds()
	}

	bm := &bitmap{w: bounds.Dx(), h: bounds.Dy()}
	bm.dark = make([]bool, bm.w*bm.h)
	threshold := uint32(cutoff) << 8 // RGBA() は16bitスケール

	for y := 0; y < bm.h; y++ {
		for x := 0; x < bm.w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 近似の整数輝度
			luma := (299*r + 587*g + 114*b) / 1000
			bm.dark[y*bm.w+x] = luma < threshold
		}
	}
	return bm
}

// blackRatio は黒画素の比率を返します。
func (bm *bitmap) blackRatio() float64 {
	if len(bm.dark) == 0 {
		return 0
	}
	count := 0
	for _, d := range bm.dark {
		if d {
			count++
		}
	}
	return float64(count) / float64(len(bm.dark))
}

// longRunCount は走査線（行）ごとの連続黒画素ランを調べ、
// 幅の maxFraction を超えるランの本数を返します。
func (bm *bitmap) longRunCount(maxFraction float64) int {
	limit := int(float64(bm.w) * maxFraction)
	if limit < 1 {
		limit = 1
	}
	count := 0
	for y := 0; y < bm.h; y++ {
		run := 0
		for x := 0; x < bm.w; x++ {
			if bm.dark[y*bm.w+x] {
				run++
				if run == limit+1 {
					count++
				}
			} else {
				run = 0
			}
		}
	}
	return count
}

// coverage は黒画素のバウンディングボックスがキャンバス全体に占める割合を返します。
func (bm *bitmap) coverage() float64 {
	minX, minY := bm.w, bm.h
	maxX, maxY := -1, -1
	for y := 0; y < bm.h; y++ {
		for x := 0; x < bm.w; x++ {
			if !bm.dark[y*bm.w+x] {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return 0 // 真っ白な画像
	}
	boxArea := float64(maxX-minX+1) * float64(maxY-minY+1)
	return boxArea / float64(bm.w*bm.h)
}

// bottomBandOccupied は下端の帯に描画があるかどうかを返します。
func (bm *bitmap) bottomBandOccupied(fraction float64) bool {
	bandRows := int(float64(bm.h) * fraction)
	if bandRows < 1 {
		bandRows = 1
	}
	for y := bm.h - bandRows; y < bm.h; y++ {
		for x := 0; x < bm.w; x++ {
			if bm.dark[y*bm.w+x] {
				return true
			}
		}
	}
	return false
}
