package domain

import "time"

// AssetType は保存される成果物の種別です。
type AssetType string

const (
	AssetPageImage   AssetType = "page_image"
	AssetFrontMatter AssetType = "front_matter"
	AssetPDF         AssetType = "pdf"
	AssetZIP         AssetType = "zip"
	AssetPreview     AssetType = "preview"
)

// AssetStatus は保存済み成果物の状態です。ready → expired への遷移は
// クリーンアップスイープによってのみ行われます。
type AssetStatus string

const (
	AssetReady   AssetStatus = "ready"
	AssetExpired AssetStatus = "expired"
)

// StoredAsset は永続化された成果物のメタデータ行です。
// status=ready の行が storage_path を空にすることはありません。
type StoredAsset struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	UserID      string      `json:"user_id"`
	PageNumber  *int        `json:"page_number"` // front_matter 等のページ非依存アセットは nil
	AssetType   AssetType   `json:"asset_type"`
	StoragePath string      `json:"storage_path"`
	Status      AssetStatus `json:"status"`
	ExpiresAt   *time.Time  `json:"expires_at"` // 保存時に料金プランから算出。無期限なら nil
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
