package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// PageRunner は1ページを終端状態まで駆動する契約です。
// orchestrator.Orchestrator が既定実装です。
type PageRunner interface {
	Run(ctx context.Context, scene domain.ScenePrompt) domain.PageOutcome
}

const (
	// MaxConcurrency はプロバイダーの流量制限を守るための並列度上限です。
	MaxConcurrency = 3

	// DefaultWindowDelay はウィンドウ間の既定待機時間です。
	DefaultWindowDelay = 10 * time.Second
)

// Options はバッチ実行の調整値です。
type Options struct {
	// Concurrency は1ウィンドウ内で同時に実行するページ数です（1〜MaxConcurrency）。
	Concurrency int
	// WindowDelay はウィンドウ完了から次ウィンドウ開始までの待機時間です。
	WindowDelay time.Duration
}

func (o Options) normalized() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.Concurrency > MaxConcurrency {
		o.Concurrency = MaxConcurrency
	}
	return o
}

// Result はバッチ全体の集計結果です。Outcomes の順序は入力順と一致します。
type Result struct {
	Outcomes     []domain.PageOutcome
	SuccessCount int
	FailCount    int
}

// BatchScheduler はページ一覧を固定幅のウィンドウに分割し、
// ウィンドウ内は並列、ウィンドウ間は逐次で実行します。
// あるページの失敗が同一ウィンドウの他ページを中断させることはありません。
// キャンセルはウィンドウ境界でのみ観測します（実行中ウィンドウは完走させる）。
type BatchScheduler struct {
	runner PageRunner
	opts   Options
}

// New は新しい BatchScheduler を生成します。
func New(runner PageRunner, opts Options) *BatchScheduler {
	return &BatchScheduler{runner: runner, opts: opts.normalized()}
}

// Run は全ページを実行し、入力順を保った Result を返します。
// キャンセルで途中終了した場合も全ページ分の結果を列挙し、
// 未実行ページは failed として記録した上で ctx のエラーを返します。
func (s *BatchScheduler) Run(ctx context.Context, scenes []domain.ScenePrompt) (Result, error) {
	res := Result{Outcomes: make([]domain.PageOutcome, len(scenes))}
	if len(scenes) == 0 {
		return res, nil
	}

	totalWindows := (len(scenes) + s.opts.Concurrency - 1) / s.opts.Concurrency
	slog.InfoContext(ctx, "バッチ生成を開始します",
		"pages", len(scenes), "concurrency", s.opts.Concurrency, "windows", totalWindows)

	var stopErr error
	for start := 0; start < len(scenes); start += s.opts.Concurrency {
		// キャンセルの観測はウィンドウ境界のみ。
		if err := ctx.Err(); err != nil {
			stopErr = err
			s.markSkipped(res.Outcomes, scenes, start, err)
			break
		}

		end := start + s.opts.Concurrency
		if end > len(scenes) {
			end = len(scenes)
		}
		window := (start / s.opts.Concurrency) + 1
		slog.InfoContext(ctx, "ウィンドウを実行します", "window", window, "of", totalWindows, "pages", end-start)

		var eg errgroup.Group
		for i := start; i < end; i++ {
			i := i
			eg.Go(func() error {
				// Run はエラーを返さない。失敗は Outcome に畳み込まれているため、
				// 兄弟ページの実行が巻き添えで中断されることはない。
				res.Outcomes[i] = s.runner.Run(ctx, scenes[i])
				return nil
			})
		}
		_ = eg.Wait()

		if end < len(scenes) && s.opts.WindowDelay > 0 {
			if err := sleepCtx(ctx, s.opts.WindowDelay); err != nil {
				stopErr = err
				s.markSkipped(res.Outcomes, scenes, end, err)
				break
			}
		}
	}

	for _, o := range res.Outcomes {
		if o.Status == domain.PageDone {
			res.SuccessCount++
		} else {
			res.FailCount++
		}
	}

	slog.InfoContext(ctx, "バッチ生成が完了しました",
		"success", res.SuccessCount, "fail", res.FailCount)
	return res, stopErr
}

// markSkipped はキャンセルにより未実行となったページに明示的な失敗を記録します。
// 結果の列挙からページが黙って抜け落ちることはありません。
func (s *BatchScheduler) markSkipped(outcomes []domain.PageOutcome, scenes []domain.ScenePrompt, from int, cause error) {
	for i := from; i < len(scenes); i++ {
		outcomes[i] = domain.PageOutcome{
			PageIndex: scenes[i].PageIndex,
			Status:    domain.PageFailed,
			LastError: fmt.Errorf("バッチがキャンセルされたため未実行です: %w", cause),
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
