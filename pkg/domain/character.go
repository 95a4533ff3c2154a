package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CharacterProfile は全ページで同一の見た目を保つべき主役キャラクターの定義です。
// プロジェクトが所有し、パイプラインからは読み取り専用で参照されます。
type CharacterProfile struct {
	CanonicalName          string   `json:"canonical_name"`
	Proportions            string   `json:"proportions"`             // 例: "3-head-tall chibi, round face"
	DistinguishingFeatures []string `json:"distinguishing_features"` // プロンプトに注入する外見上の特徴（順序保持）
	Outfit                 string   `json:"outfit"`
	NegativeRules          []string `json:"negative_rules"` // 描いてはいけない要素（順序保持）
	ReferenceURL           string   `json:"reference_url"`  // 一貫性検証のための参照画像URL
}

// LoadCharacterProfile は指定されたファイルパスからJSONを読み込み、プロファイルを返します。
func LoadCharacterProfile(path string) (*CharacterProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("キャラクタープロファイルの読み込みに失敗しました: %w", err)
	}
	return GetCharacterProfile(data)
}

// GetCharacterProfile はJSONバイト列からプロファイルをパースして返します。
// この関数はステートレスであり、キャッシュを行いません。
func GetCharacterProfile(profileJSON []byte) (*CharacterProfile, error) {
	var p CharacterProfile
	if err := json.Unmarshal(profileJSON, &p); err != nil {
		return nil, fmt.Errorf("キャラクタープロファイルのJSONパースに失敗しました: %w", err)
	}
	if strings.TrimSpace(p.CanonicalName) == "" {
		return nil, fmt.Errorf("canonical_name は必須です")
	}
	return &p, nil
}

// Clone はプロファイルの防御的コピーを返します。
// 並列実行中のタスクが内部スライスを共有しないようにするためのものです。
func (p *CharacterProfile) Clone() *CharacterProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.DistinguishingFeatures != nil {
		cp.DistinguishingFeatures = make([]string, len(p.DistinguishingFeatures))
		copy(cp.DistinguishingFeatures, p.DistinguishingFeatures)
	}
	if p.NegativeRules != nil {
		cp.NegativeRules = make([]string, len(p.NegativeRules))
		copy(cp.NegativeRules, p.NegativeRules)
	}
	return &cp
}

// String はプロファイルの要約を文字列で返します。
func (p CharacterProfile) String() string {
	return fmt.Sprintf("%s (%d features)", p.CanonicalName, len(p.DistinguishingFeatures))
}
