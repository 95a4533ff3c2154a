package domain

import (
	"testing"
)

func TestParseCanvasSize(t *testing.T) {
	cases := []struct {
		input    string
		expected CanvasSize
	}{
		{"square", CanvasSquare},
		{"portrait", CanvasPortrait},
		{"landscape", CanvasLandscape},
		{"PORTRAIT", CanvasPortrait},
		{"1024x1536", CanvasPortrait},
	}
	for _, c := range cases {
		got, err := ParseCanvasSize(c.input)
		if err != nil {
			t.Errorf("入力 '%s' でエラーが発生しました: %v", c.input, err)
			continue
		}
		if got != c.expected {
			t.Errorf("入力 '%s': 期待値 '%s', 実際の値 '%s'", c.input, c.expected, got)
		}
	}

	// 異常系：不正なサイズでエラーが返ること
	if _, err := ParseCanvasSize("a4"); err == nil {
		t.Error("不正なサイズでエラーが発生しませんでした")
	}
}

func TestCanvasSize_Dimensions(t *testing.T) {
	w, h := CanvasPortrait.Dimensions()
	if w != 1024 || h != 1536 {
		t.Errorf("期待値 1024x1536, 実際の値 %dx%d", w, h)
	}

	if CanvasPortrait.AspectRatio() != "2:3" {
		t.Errorf("縦長のアスペクト比が '2:3' ではありません: %s", CanvasPortrait.AspectRatio())
	}
	if CanvasLandscape.AspectRatio() != "3:2" {
		t.Errorf("横長のアスペクト比が '3:2' ではありません: %s", CanvasLandscape.AspectRatio())
	}
	if CanvasSquare.AspectRatio() != "1:1" {
		t.Errorf("正方形のアスペクト比が '1:1' ではありません: %s", CanvasSquare.AspectRatio())
	}
}

func TestScenePrompt_Validate(t *testing.T) {
	t.Run("正常なシーンが通ること", func(t *testing.T) {
		s := ScenePrompt{PageIndex: 1, RawText: "a cat in a garden"}
		if err := s.Validate(); err != nil {
			t.Errorf("正常なシーンでエラーが発生しました: %v", err)
		}
	})

	t.Run("ページ番号0が拒否されること", func(t *testing.T) {
		s := ScenePrompt{PageIndex: 0, RawText: "a cat"}
		if err := s.Validate(); err == nil {
			t.Error("ページ番号0でエラーが発生しませんでした")
		}
	})

	t.Run("空白のみのシーン記述が拒否されること", func(t *testing.T) {
		s := ScenePrompt{PageIndex: 1, RawText: "  \n  "}
		if err := s.Validate(); err == nil {
			t.Error("空白のみのシーン記述でエラーが発生しませんでした")
		}
	})
}

func TestStyleConfig_Validate(t *testing.T) {
	if err := DefaultStyle().Validate(); err != nil {
		t.Errorf("デフォルトのスタイルがバリデーションを通りません: %v", err)
	}

	bad := DefaultStyle()
	bad.Complexity = "ultra"
	if err := bad.Validate(); err == nil {
		t.Error("不正な複雑度でエラーが発生しませんでした")
	}

	bad = DefaultStyle()
	bad.Mode = "comic"
	if err := bad.Validate(); err == nil {
		t.Error("不正なモードでエラーが発生しませんでした")
	}
}
