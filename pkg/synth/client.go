package synth

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"golang.org/x/time/rate"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// Synthesizer は画像合成プロバイダーへの細い契約です。
// オーケストレーターはこの契約だけに依存し、プロバイダーは差し替え可能です。
type Synthesizer interface {
	// Synthesize はコンパイル済みプロンプトから画像バイト列を生成します。
	// 失敗時のエラーは ProviderError として分類されていることが保証されます。
	Synthesize(ctx context.Context, prompt domain.CompiledPrompt, size domain.CanvasSize) ([]byte, error)
}

// PanelGenerator は gemini-image-kit 側の生成契約の最小部分です。
type PanelGenerator interface {
	GenerateMangaPanel(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error)
}

const (
	// synthSystemPrompt は塗り絵ページ生成におけるモデルの役割定義です。
	synthSystemPrompt = "You are a professional coloring book illustrator. Produce a single black-and-white line art page: pure black outlines on a pure white background, nothing else."

	// synthNegativePrompt はプロバイダーに渡す共通の Negative Prompt です。
	synthNegativePrompt = "solid black fills, filled silhouettes, shading, gradients, gray tones, crosshatching, color, photograph, text, letters, watermark, signature, border, frame"
)

// GeminiSynthesizer は gemini-image-kit を使った Synthesizer の既定実装です。
// 全呼び出しが共通のレートリミッターを通るため、並列度に関わらず
// プロバイダーへの瞬間負荷は一定に抑えられます。
type GeminiSynthesizer struct {
	generator PanelGenerator
	limiter   *rate.Limiter
	timeout   time.Duration
	seed      *int64 // キャラクター一貫性のための固定シード。未使用なら nil
}

// NewGeminiSynthesizer は新しい GeminiSynthesizer を生成します。
// interval はプロバイダー呼び出しの最小間隔、timeout は1呼び出しのハードタイムアウトです。
func NewGeminiSynthesizer(generator PanelGenerator, interval, timeout time.Duration) *GeminiSynthesizer {
	return &GeminiSynthesizer{
		generator: generator,
		limiter:   rate.NewLimiter(rate.Every(interval), 2),
		timeout:   timeout,
	}
}

// WithCharacterSeed はプロファイル名から決定論的なシードを固定します。
// 同じキャラクターなら毎回同じシードが使われ、ページ間の見た目が安定します。
func (s *GeminiSynthesizer) WithCharacterSeed(profile *domain.CharacterProfile) *GeminiSynthesizer {
	if profile != nil && profile.CanonicalName != "" {
		seed := SeedFromName(profile.CanonicalName)
		s.seed = &seed
	}
	return s
}

// Synthesize はレートリミッターを通過してからプロバイダーを呼び出します。
// タイムアウト超過は transient に分類され、呼び出し元の試行予算の中で再試行されます。
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, prompt domain.CompiledPrompt, size domain.CanvasSize) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, Classify(fmt.Errorf("リミッター待機中にエラーが発生しました: %w", err))
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.generator.GenerateMangaPanel(callCtx, imagedom.ImageGenerationRequest{
		Prompt:         prompt.Text,
		SystemPrompt:   synthSystemPrompt,
		NegativePrompt: synthNegativePrompt,
		AspectRatio:    size.AspectRatio(),
		Seed:           s.seed,
	})
	if err != nil {
		return nil, Classify(err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, &ProviderError{Kind: KindTransient, Message: "プロバイダーが空の画像を返しました"}
	}
	return resp.Data, nil
}

// SeedFromName は名前から決定論的なシード値を生成します。
func SeedFromName(name string) int64 {
	hash := sha256.Sum256([]byte(name))
	seed := int64(binary.BigEndian.Uint32(hash[:4]))
	// 正の値が望ましいため最上位ビットは落とす
	return seed & 0x7FFFFFFF
}
