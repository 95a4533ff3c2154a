package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-coloring-kit/pkg/domain"
	"github.com/shouni/go-coloring-kit/pkg/prompts"
	"github.com/shouni/go-coloring-kit/pkg/quality"
	"github.com/shouni/go-coloring-kit/pkg/synth"
)

// State はページ生成ステートマシンの状態です。
type State string

const (
	StatePending      State = "pending"
	StateCompiling    State = "compiling"
	StateSynthesizing State = "synthesizing"
	StateValidating   State = "validating"
	StateReinforcing  State = "reinforcing"
	StatePassed       State = "passed"
	StateExhausted    State = "exhausted"
)

// Gate は品質検証の契約です。*quality.Gate が既定実装です。
type Gate interface {
	Evaluate(ctx context.Context, imageBytes []byte, style domain.StyleConfig, profile *domain.CharacterProfile) (quality.Report, error)
}

// Options はリトライ方針の調整値です。
type Options struct {
	// MaxAttempts は1ページあたりの最大試行回数です（最低1）。
	MaxAttempts int
	// TransientBackoff は transient/rate_limit エラー後の待機時間です。
	// この待機をはさんだ同一試行内の再呼び出しは1回だけ行われます。
	TransientBackoff time.Duration
}

// DefaultOptions は既定のリトライ方針を返します。
func DefaultOptions() Options {
	return Options{
		MaxAttempts:      3,
		TransientBackoff: 5 * time.Second,
	}
}

func (o Options) normalized() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	return o
}

// Orchestrator は1ページ分の生成を
// Pending → Compiling → Synthesizing → Validating → {Passed | Reinforcing | Exhausted}
// のステートマシンとして駆動します。品質不合格のたびに強調レベルを上げて
// コンパイルし直し、試行予算を使い切ったら打ち切ります。
type Orchestrator struct {
	compiler    *prompts.PagePromptBuilder
	synthesizer synth.Synthesizer
	gate        Gate
	style       domain.StyleConfig
	profile     *domain.CharacterProfile
	opts        Options
}

// New は新しい Orchestrator を生成します。profile は nil 可です。
func New(compiler *prompts.PagePromptBuilder, synthesizer synth.Synthesizer, gate Gate, style domain.StyleConfig, profile *domain.CharacterProfile, opts Options) *Orchestrator {
	return &Orchestrator{
		compiler:    compiler,
		synthesizer: synthesizer,
		gate:        gate,
		style:       style,
		profile:     profile.Clone(),
		opts:        opts.normalized(),
	}
}

// Run は1ページを終端状態まで駆動し、PageOutcome を返します。
// 試行を使い切っても画像が1枚でも生成されていれば、警告付きで
// その最終画像を返します（ベストエフォート配信）。
func (o *Orchestrator) Run(ctx context.Context, scene domain.ScenePrompt) domain.PageOutcome {
	var (
		state       = StatePending
		attempt     = 0
		level       = 0
		hints       []string
		compiled    domain.CompiledPrompt
		lastImage   []byte
		lastMetrics *domain.QualityMetrics
		lastErr     error
	)

	for {
		switch state {

		case StatePending:
			state = StateCompiling

		case StateCompiling:
			cp, err := o.compiler.Build(scene, level, hints)
			if err != nil {
				// 入力バリデーションエラー。即時失敗で再試行しない。
				return domain.PageOutcome{
					PageIndex: scene.PageIndex,
					Status:    domain.PageFailed,
					Attempts:  attempt,
					LastError: err,
				}
			}
			cp.Attempt = attempt + 1
			compiled = cp
			state = StateSynthesizing

		case StateSynthesizing:
			attempt++
			slog.InfoContext(ctx, "画像合成を開始します",
				"page", scene.PageIndex, "attempt", attempt, "reinforcement", level)

			img, err := o.synthesizeWithBackoff(ctx, compiled)
			if err != nil {
				pe := synth.Classify(err)
				lastErr = pe
				switch pe.Kind {
				case synth.KindContentPolicy, synth.KindFatal:
					// ポリシー違反は再試行しても解決しない。恒久失敗も同様。
					state = StateExhausted
				default:
					state = StateReinforcing
				}
				continue
			}
			lastImage = img
			state = StateValidating

		case StateValidating:
			report, err := o.gate.Evaluate(ctx, lastImage, o.style, o.profile)
			if err != nil {
				lastErr = fmt.Errorf("品質検証に失敗しました: %w", err)
				state = StateReinforcing
				continue
			}
			lastMetrics = &report.Metrics
			if report.Passed {
				state = StatePassed
				continue
			}
			slog.InfoContext(ctx, "品質ゲート不合格",
				"page", scene.PageIndex,
				"attempt", attempt,
				"reason", report.FailureReason,
				"black_ratio", report.Metrics.BlackRatio)
			lastErr = fmt.Errorf("品質ゲート不合格: %s", report.FailureReason)
			hints = []string{report.RetryReinforcement}
			state = StateReinforcing

		case StateReinforcing:
			if attempt >= o.opts.MaxAttempts {
				state = StateExhausted
				continue
			}
			if level < prompts.MaxReinforcementLevel {
				level++
			}
			state = StateCompiling

		case StatePassed:
			return domain.PageOutcome{
				PageIndex:  scene.PageIndex,
				Status:     domain.PageDone,
				ImageBytes: lastImage,
				Attempts:   attempt,
				Metrics:    lastMetrics,
			}

		case StateExhausted:
			if lastImage != nil {
				// ハード失敗と区別できるよう、警告付きで最後の画像を返す。
				return domain.PageOutcome{
					PageIndex:  scene.PageIndex,
					Status:     domain.PageDone,
					ImageBytes: lastImage,
					Attempts:   attempt,
					Metrics:    lastMetrics,
					Warning:    fmt.Sprintf("%d回の試行で品質ゲートを通過できなかったため、最後の生成画像を返します", attempt),
					LastError:  lastErr,
				}
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("画像が1枚も生成されませんでした")
			}
			return domain.PageOutcome{
				PageIndex: scene.PageIndex,
				Status:    domain.PageFailed,
				Attempts:  attempt,
				LastError: lastErr,
			}
		}
	}
}

// synthesizeWithBackoff はプロバイダー呼び出しを1回行い、
// transient/rate_limit の場合のみ固定バックオフをはさんで同一試行内で
// もう1回だけ呼び直します。2回目の失敗はそのまま返します。
func (o *Orchestrator) synthesizeWithBackoff(ctx context.Context, compiled domain.CompiledPrompt) ([]byte, error) {
	img, err := o.synthesizer.Synthesize(ctx, compiled, o.style.CanvasSize)
	if err == nil {
		return img, nil
	}

	pe := synth.Classify(err)
	if !pe.Retryable() {
		return nil, pe
	}

	slog.InfoContext(ctx, "一時的なエラーのためバックオフ後に再呼び出しします",
		"page", compiled.PageIndex, "kind", pe.Kind, "backoff", o.opts.TransientBackoff)
	if err := sleepCtx(ctx, o.opts.TransientBackoff); err != nil {
		return nil, pe
	}
	return o.synthesizer.Synthesize(ctx, compiled, o.style.CanvasSize)
}

// sleepCtx はキャンセル可能なスリープです。
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
