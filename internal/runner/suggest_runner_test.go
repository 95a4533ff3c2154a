package runner

import (
	"strings"
	"testing"
)

func TestSceneSuggestRunner_ParseResponse(t *testing.T) {
	sr := &SceneSuggestRunner{}

	t.Run("フェンス付きJSONブロックを解析できること", func(t *testing.T) {
		raw := "はい、シーン候補です。\n```json\n{\"pages\":[{\"page\":1,\"title\":\"朝\",\"prompt\":\"a fox waking up\"}]}\n```\n以上です。"
		scenes, err := sr.parseResponse(raw)
		if err != nil {
			t.Fatalf("解析でエラーが発生しました: %v", err)
		}
		if len(scenes) != 1 {
			t.Fatalf("件数: 期待値 1, 実際の値 %d", len(scenes))
		}
		if scenes[0].RawText != "a fox waking up" {
			t.Errorf("プロンプトが一致しません: %s", scenes[0].RawText)
		}
	})

	t.Run("フェンスなしでも最外周のJSONを拾えること", func(t *testing.T) {
		raw := `結果: {"pages":[{"page":1,"prompt":"scene one"},{"page":2,"prompt":"scene two"}]} おわり`
		scenes, err := sr.parseResponse(raw)
		if err != nil {
			t.Fatalf("解析でエラーが発生しました: %v", err)
		}
		if len(scenes) != 2 {
			t.Errorf("件数: 期待値 2, 実際の値 %d", len(scenes))
		}
	})

	t.Run("ページ番号の欠落は入力順で補完されること", func(t *testing.T) {
		raw := `{"pages":[{"prompt":"first"},{"prompt":"second"}]}`
		scenes, err := sr.parseResponse(raw)
		if err != nil {
			t.Fatalf("解析でエラーが発生しました: %v", err)
		}
		if scenes[0].PageIndex != 1 || scenes[1].PageIndex != 2 {
			t.Errorf("ページ番号が補完されていません: %d, %d", scenes[0].PageIndex, scenes[1].PageIndex)
		}
	})

	t.Run("JSONが含まれない応答はエラーになること", func(t *testing.T) {
		_, err := sr.parseResponse("すみません、生成できませんでした。")
		if err == nil {
			t.Error("JSON無しの応答でエラーが発生しませんでした")
		}
	})

	t.Run("候補0件はエラーになること", func(t *testing.T) {
		_, err := sr.parseResponse(`{"pages":[]}`)
		if err == nil {
			t.Error("候補0件でエラーが発生しませんでした")
		}
	})
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("hello", 10); got != "hello" {
		t.Errorf("短い文字列が変更されました: %s", got)
	}
	got := truncateString(strings.Repeat("a", 20), 10)
	if got != strings.Repeat("a", 10)+"..." {
		t.Errorf("切り詰め結果が一致しません: %s", got)
	}
}
