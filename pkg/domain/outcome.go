package domain

// CompiledPrompt はコンパイル済みのプロンプトです。永続化はせず、試行ごとに再計算します。
type CompiledPrompt struct {
	PageIndex          int
	Text               string
	Attempt            int
	ReinforcementLevel int
}

// QualityMetrics は生成画像1枚ごとに算出される品質指標です。算出後は不変です。
type QualityMetrics struct {
	BlackRatio        float64 `json:"black_ratio"`        // 2値化後の黒画素比率 [0,1]
	LongRunCount      int     `json:"long_run_count"`     // 閾値を超えた連続黒画素ランの本数
	PassedOutline     bool    `json:"passed_outline"`     // 黒比率チェックと長ランチェックの合否
	PassedComposition bool    `json:"passed_composition"` // カバレッジと下端余白チェックの合否
	PassedCharacter   *bool   `json:"passed_character"`   // プロファイル未指定なら nil
}

// PageStatus はバッチ内での1ページの最終状態です。
type PageStatus string

const (
	PageDone   PageStatus = "done"
	PageFailed PageStatus = "failed"
)

// PageOutcome はバッチ実行1回につき1ページに1つ生成される終端結果です。
// Status が done のとき ImageBytes は必ず非nilです。
type PageOutcome struct {
	PageIndex  int
	Status     PageStatus
	ImageBytes []byte
	Attempts   int
	Metrics    *QualityMetrics
	Warning    string // 試行を使い切ってベストエフォート画像を返した場合に非空
	LastError  error
}

// Degraded は「画像はあるが品質ゲートを通らなかった」ベストエフォート結果かどうかを返します。
func (o PageOutcome) Degraded() bool {
	return o.Status == PageDone && o.Warning != ""
}
