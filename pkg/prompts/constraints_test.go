package prompts

import (
	"strings"
	"testing"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

func TestRequiredFragments(t *testing.T) {
	t.Run("正方形キャンバスでは下端フラグメントが不要なこと", func(t *testing.T) {
		frags := RequiredFragments(domain.ModeTheme, domain.CanvasSquare)
		for _, f := range frags {
			if f == FragmentBottomFill {
				t.Error("正方形キャンバスに下端フラグメントが含まれています")
			}
		}
	})

	t.Run("縦長キャンバスでは下端フラグメントが必須なこと", func(t *testing.T) {
		frags := RequiredFragments(domain.ModeTheme, domain.CanvasPortrait)
		found := false
		for _, f := range frags {
			if f == FragmentBottomFill {
				found = true
			}
		}
		if !found {
			t.Error("縦長キャンバスに下端フラグメントが含まれていません")
		}
	})

	t.Run("モードによって占有率が変わること", func(t *testing.T) {
		theme := coverageFragment(domain.ModeTheme, domain.CanvasSquare)
		storybook := coverageFragment(domain.ModeStorybook, domain.CanvasSquare)
		if !strings.Contains(theme, "90%") {
			t.Errorf("theme モードの占有率が 90%% ではありません: %s", theme)
		}
		if !strings.Contains(storybook, "85%") {
			t.Errorf("storybook モードの占有率が 85%% ではありません: %s", storybook)
		}
	})

	t.Run("占有率の指示にピクセル寸法が含まれること", func(t *testing.T) {
		frag := coverageFragment(domain.ModeTheme, domain.CanvasPortrait)
		if !strings.Contains(frag, "1024x1536") {
			t.Errorf("キャンバス寸法が含まれていません: %s", frag)
		}
	})
}

func TestMaxReinforcementLevel(t *testing.T) {
	if MaxReinforcementLevel != len(reinforcementTiers)-1 {
		t.Errorf("強調レベルの上限がティア数と一致しません: %d", MaxReinforcementLevel)
	}
	if MaxReinforcementLevel < 1 {
		t.Errorf("強調レベルの上限が小さすぎます: %d", MaxReinforcementLevel)
	}
}

func TestReinforcementBlock(t *testing.T) {
	t.Run("レベル0では空であること", func(t *testing.T) {
		if ReinforcementBlock(0) != "" {
			t.Error("レベル0の強調ブロックが空ではありません")
		}
	})

	t.Run("レベルは単調であること", func(t *testing.T) {
		// レベル k+1 はレベル k の内容をすべて含む（取り除かれることはない）
		for level := 1; level <= MaxReinforcementLevel; level++ {
			prev := ReinforcementBlock(level - 1)
			curr := ReinforcementBlock(level)
			if !strings.Contains(curr, prev) {
				t.Errorf("レベル %d がレベル %d の内容を含んでいません", level, level-1)
			}
			if len(curr) <= len(prev) {
				t.Errorf("レベル %d で強調が追加されていません", level)
			}
		}
	})

	t.Run("上限を超えたレベルは上限で飽和すること", func(t *testing.T) {
		if ReinforcementBlock(MaxReinforcementLevel+5) != ReinforcementBlock(MaxReinforcementLevel) {
			t.Error("上限を超えたレベルが飽和していません")
		}
	})

	t.Run("負のレベルはレベル0として扱われること", func(t *testing.T) {
		if ReinforcementBlock(-1) != "" {
			t.Error("負のレベルが空の強調ブロックになっていません")
		}
	})
}
