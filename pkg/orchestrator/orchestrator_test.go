package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/go-coloring-kit/pkg/domain"
	"github.com/shouni/go-coloring-kit/pkg/prompts"
	"github.com/shouni/go-coloring-kit/pkg/quality"
	"github.com/shouni/go-coloring-kit/pkg/synth"
)

// fakeSynthesizer は呼び出しごとにあらかじめ仕込んだ結果を返すテスト用の合成器です。
type fakeSynthesizer struct {
	calls   int
	results []fakeResult
}

type fakeResult struct {
	img []byte
	err error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ domain.CompiledPrompt, _ domain.CanvasSize) ([]byte, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	r := f.results[i]
	return r.img, r.err
}

// fakeGate は呼び出しごとにあらかじめ仕込んだ Report を返すテスト用のゲートです。
type fakeGate struct {
	calls   int
	reports []quality.Report
}

func (f *fakeGate) Evaluate(_ context.Context, _ []byte, _ domain.StyleConfig, _ *domain.CharacterProfile) (quality.Report, error) {
	i := f.calls
	f.calls++
	if i >= len(f.reports) {
		i = len(f.reports) - 1
	}
	return f.reports[i], nil
}

func testOrchestratorStyle() domain.StyleConfig {
	return domain.StyleConfig{
		Complexity:    domain.ComplexityMedium,
		LineThickness: domain.LineMedium,
		CanvasSize:    domain.CanvasPortrait,
		Mode:          domain.ModeTheme,
	}
}

func newTestOrchestrator(s synth.Synthesizer, g Gate, maxAttempts int) *Orchestrator {
	style := testOrchestratorStyle()
	compiler := prompts.NewPagePromptBuilder(style, nil)
	return New(compiler, s, g, style, nil, Options{MaxAttempts: maxAttempts, TransientBackoff: 0})
}

func testScene() domain.ScenePrompt {
	return domain.ScenePrompt{PageIndex: 1, RawText: "a fox reading a book"}
}

func TestOrchestrator_Run_PassFirstAttempt(t *testing.T) {
	synthesizer := &fakeSynthesizer{results: []fakeResult{{img: []byte("png")}}}
	gate := &fakeGate{reports: []quality.Report{{Passed: true}}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Status != domain.PageDone {
		t.Fatalf("期待値 done, 実際の値 %s (err=%v)", outcome.Status, outcome.LastError)
	}
	if outcome.Attempts != 1 {
		t.Errorf("試行回数: 期待値 1, 実際の値 %d", outcome.Attempts)
	}
	if outcome.Warning != "" {
		t.Errorf("初回合格なのに警告が付いています: %s", outcome.Warning)
	}
}

func TestOrchestrator_Run_ContentPolicyNoRetry(t *testing.T) {
	// ポリシー違反は即時打ち切り。再試行は行われないこと
	synthesizer := &fakeSynthesizer{results: []fakeResult{
		{err: &synth.ProviderError{Kind: synth.KindContentPolicy, Message: "blocked by safety"}},
	}}
	gate := &fakeGate{reports: []quality.Report{{Passed: true}}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Status != domain.PageFailed {
		t.Fatalf("期待値 failed, 実際の値 %s", outcome.Status)
	}
	if outcome.Attempts != 1 {
		t.Errorf("試行回数: 期待値 1, 実際の値 %d", outcome.Attempts)
	}
	if synthesizer.calls != 1 {
		t.Errorf("合成器の呼び出し回数: 期待値 1, 実際の値 %d", synthesizer.calls)
	}
	pe, ok := synth.AsProviderError(outcome.LastError)
	if !ok || pe.Kind != synth.KindContentPolicy {
		t.Errorf("LastError がポリシー違反の分類を保持していません: %v", outcome.LastError)
	}
}

func TestOrchestrator_Run_QualityRetryThenPass(t *testing.T) {
	synthesizer := &fakeSynthesizer{results: []fakeResult{
		{img: []byte("bad")},
		{img: []byte("good")},
	}}
	gate := &fakeGate{reports: []quality.Report{
		{Passed: false, FailureReason: "black_ratio", RetryReinforcement: "remove black fills"},
		{Passed: true},
	}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Status != domain.PageDone {
		t.Fatalf("期待値 done, 実際の値 %s", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Errorf("試行回数: 期待値 2, 実際の値 %d", outcome.Attempts)
	}
	if outcome.Warning != "" {
		t.Errorf("合格したのに警告が付いています: %s", outcome.Warning)
	}
	if string(outcome.ImageBytes) != "good" {
		t.Error("2回目の画像が返されていません")
	}
}

func TestOrchestrator_Run_ExhaustedBestEffort(t *testing.T) {
	// 全試行が品質不合格でも、画像があれば警告付きの done で返すこと
	synthesizer := &fakeSynthesizer{results: []fakeResult{{img: []byte("png")}}}
	gate := &fakeGate{reports: []quality.Report{
		{Passed: false, FailureReason: "black_ratio", RetryReinforcement: "remove fills"},
	}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Status != domain.PageDone {
		t.Fatalf("期待値 done, 実際の値 %s", outcome.Status)
	}
	if outcome.Attempts != 3 {
		t.Errorf("試行回数: 期待値 3, 実際の値 %d", outcome.Attempts)
	}
	if outcome.Warning == "" {
		t.Error("ベストエフォート配信なのに警告が空です")
	}
	if !outcome.Degraded() {
		t.Error("Degraded() が true を返しません")
	}
}

func TestOrchestrator_Run_ExhaustedWithoutImage(t *testing.T) {
	// 画像が1枚も生成できなければハード失敗になること
	synthesizer := &fakeSynthesizer{results: []fakeResult{
		{err: errors.New("503 service unavailable")},
	}}
	gate := &fakeGate{reports: []quality.Report{{Passed: true}}}
	orch := newTestOrchestrator(synthesizer, gate, 2)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Status != domain.PageFailed {
		t.Fatalf("期待値 failed, 実際の値 %s", outcome.Status)
	}
	if outcome.ImageBytes != nil {
		t.Error("失敗なのに画像が付いています")
	}
	if outcome.LastError == nil {
		t.Error("失敗なのに LastError が nil です")
	}
}

func TestOrchestrator_Run_MaxAttemptsBound(t *testing.T) {
	// どれだけ失敗しても試行回数は上限を超えないこと
	synthesizer := &fakeSynthesizer{results: []fakeResult{{img: []byte("png")}}}
	gate := &fakeGate{reports: []quality.Report{
		{Passed: false, FailureReason: "coverage", RetryReinforcement: "fill the canvas"},
	}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Attempts > 3 {
		t.Errorf("試行回数が上限を超えています: %d", outcome.Attempts)
	}
	if gate.calls > 3 {
		t.Errorf("品質評価の回数が上限を超えています: %d", gate.calls)
	}
}

func TestOrchestrator_Run_TransientInAttemptRetry(t *testing.T) {
	// transient エラーは同一試行内で1回だけ呼び直されること
	synthesizer := &fakeSynthesizer{results: []fakeResult{
		{err: errors.New("request timeout")},
		{img: []byte("png")},
	}}
	gate := &fakeGate{reports: []quality.Report{{Passed: true}}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), testScene())

	if outcome.Status != domain.PageDone {
		t.Fatalf("期待値 done, 実際の値 %s (err=%v)", outcome.Status, outcome.LastError)
	}
	// 呼び直しは試行回数としては1回に数えられる
	if outcome.Attempts != 1 {
		t.Errorf("試行回数: 期待値 1, 実際の値 %d", outcome.Attempts)
	}
	if synthesizer.calls != 2 {
		t.Errorf("合成器の呼び出し回数: 期待値 2, 実際の値 %d", synthesizer.calls)
	}
}

func TestOrchestrator_Run_InvalidSceneFailsImmediately(t *testing.T) {
	synthesizer := &fakeSynthesizer{results: []fakeResult{{img: []byte("png")}}}
	gate := &fakeGate{reports: []quality.Report{{Passed: true}}}
	orch := newTestOrchestrator(synthesizer, gate, 3)

	outcome := orch.Run(context.Background(), domain.ScenePrompt{PageIndex: 1, RawText: ""})

	if outcome.Status != domain.PageFailed {
		t.Fatalf("期待値 failed, 実際の値 %s", outcome.Status)
	}
	if synthesizer.calls != 0 {
		t.Error("バリデーションエラーなのに合成器が呼ばれています")
	}
	if outcome.Attempts != 0 {
		t.Errorf("試行回数: 期待値 0, 実際の値 %d", outcome.Attempts)
	}
}
