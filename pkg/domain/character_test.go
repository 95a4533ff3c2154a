package domain

import (
	"testing"
)

func TestGetCharacterProfile(t *testing.T) {
	// 1. 正常系：正しいJSONからプロファイルが生成されること
	jsonInput := []byte(`{
		"canonical_name": "Momo",
		"proportions": "2-head-tall round rabbit",
		"distinguishing_features": ["long floppy ears", "star-shaped patch on left ear"],
		"outfit": "yellow raincoat",
		"negative_rules": ["realistic animal anatomy"]
	}`)

	p, err := GetCharacterProfile(jsonInput)
	if err != nil {
		t.Fatalf("正常なJSONでエラーが発生しました: %v", err)
	}
	if p.CanonicalName != "Momo" {
		t.Errorf("期待値 'Momo', 実際の値 '%s'", p.CanonicalName)
	}
	if len(p.DistinguishingFeatures) != 2 {
		t.Errorf("特徴の数: 期待値 2, 実際の値 %d", len(p.DistinguishingFeatures))
	}

	// 2. 異常系：不正なJSONでエラーが返ること
	if _, err := GetCharacterProfile([]byte(`{ invalid json }`)); err == nil {
		t.Error("不正なJSONでエラーが発生しませんでした")
	}

	// 3. 異常系：canonical_name が無いJSONが拒否されること
	if _, err := GetCharacterProfile([]byte(`{"outfit": "hat"}`)); err == nil {
		t.Error("canonical_name 無しでエラーが発生しませんでした")
	}
}

func TestCharacterProfile_Clone(t *testing.T) {
	original := &CharacterProfile{
		CanonicalName:          "Momo",
		DistinguishingFeatures: []string{"long ears"},
		NegativeRules:          []string{"no stripes"},
	}

	clone := original.Clone()
	clone.DistinguishingFeatures[0] = "short ears"
	clone.NegativeRules[0] = "no dots"

	if original.DistinguishingFeatures[0] != "long ears" {
		t.Error("Cloneの変更が元のプロファイルに波及しています")
	}
	if original.NegativeRules[0] != "no stripes" {
		t.Error("Cloneの変更が元のネガティブルールに波及しています")
	}

	t.Run("nilのCloneはnilを返すこと", func(t *testing.T) {
		var p *CharacterProfile
		if p.Clone() != nil {
			t.Error("nilプロファイルのCloneがnilではありません")
		}
	})
}
