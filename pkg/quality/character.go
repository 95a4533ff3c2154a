package quality

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// CharacterChecker は生成画像が宣言済みのキャラクター特徴と一致するかを判定する契約です。
// 判定は本質的にヒューリスティック（あるいはモデル委譲）であり、実装によっては
// 非決定的になりえます。合否はソフトシグナルとしてのみ扱ってください。
type CharacterChecker interface {
	Check(ctx context.Context, imageBytes []byte, profile *domain.CharacterProfile) (bool, error)
}

// HTTPDoer は参照画像の取得に使う最小のHTTPクライアント契約です。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HashChecker は参照画像との difference hash 比較による既定の判定器です。
// プロファイルに reference_url が無い場合は常に一致とみなします。
type HashChecker struct {
	client      HTTPDoer
	maxDistance int // ハミング距離の許容上限（64bitハッシュ）
}

// NewHashChecker は新しい HashChecker を生成します。
func NewHashChecker(client HTTPDoer) *HashChecker {
	return &HashChecker{client: client, maxDistance: 24}
}

// Check は生成画像と参照画像の知覚ハッシュを比較します。
func (c *HashChecker) Check(ctx context.Context, imageBytes []byte, profile *domain.CharacterProfile) (bool, error) {
	if profile == nil || profile.ReferenceURL == "" {
		return true, nil
	}

	refBytes, err := c.fetch(ctx, profile.ReferenceURL)
	if err != nil {
		return false, fmt.Errorf("参照画像の取得に失敗しました: %w", err)
	}

	genHash, err := differenceHash(imageBytes)
	if err != nil {
		return false, err
	}
	refHash, err := differenceHash(refBytes)
	if err != nil {
		return false, err
	}

	return hammingDistance(genHash, refHash) <= c.maxDistance, nil
}

func (c *HashChecker) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("参照画像の取得に失敗しました: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// differenceHash は 9x8 グレースケール縮小画像の隣接輝度比較による64bitハッシュを計算します。
func differenceHash(imageBytes []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return 0, fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}

	const w, h = 9, 8
	small := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var hash uint64
	bit := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash, nil
}

// hammingDistance は2つのハッシュの異なるビット数を返します。
func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
