package pipeline

import (
	"path/filepath"
	"testing"
)

func TestResolveOutputPath(t *testing.T) {
	t.Run("ローカルパスはfilepathで結合されること", func(t *testing.T) {
		got, err := resolveOutputPath("output/pages", "page_001.png")
		if err != nil {
			t.Fatalf("エラーが発生しました: %v", err)
		}
		expected := filepath.Join("output/pages", "page_001.png")
		if got != expected {
			t.Errorf("期待値 '%s', 実際の値 '%s'", expected, got)
		}
	})

	t.Run("GCS URIはスキームを保護して結合されること", func(t *testing.T) {
		got, err := resolveOutputPath("gs://my-bucket/pages", "page_001.png")
		if err != nil {
			t.Fatalf("エラーが発生しました: %v", err)
		}
		if got != "gs://my-bucket/pages/page_001.png" {
			t.Errorf("期待値 'gs://my-bucket/pages/page_001.png', 実際の値 '%s'", got)
		}
	})

	t.Run("大文字スキームも認識されること", func(t *testing.T) {
		got, err := resolveOutputPath("GS://my-bucket", "a.png")
		if err != nil {
			t.Fatalf("エラーが発生しました: %v", err)
		}
		// url.Parse はスキームを小文字に正規化する
		if got != "gs://my-bucket/a.png" {
			t.Errorf("実際の値 '%s'", got)
		}
	})
}
