package asset

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// RetentionPolicy は料金プラン名から保持期間へのマップです。0 は無期限を意味します。
type RetentionPolicy map[string]time.Duration

// DefaultRetention は既定の保持期間ティアを返します。
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{
		"free":  7 * 24 * time.Hour,
		"basic": 30 * 24 * time.Hour,
		"pro":   90 * 24 * time.Hour,
	}
}

// PersistRequest は合格画像の永続化要求です。
type PersistRequest struct {
	ProjectID  string
	UserID     string
	PageNumber *int
	AssetType  domain.AssetType
	Plan       string // 保持期間ティアの選択に使う。未知のプランは free 扱い
	Data       []byte
}

// SweepResult はクリーンアップスイープの集計です。
type SweepResult struct {
	Processed int      `json:"processed"`
	Deleted   int      `json:"deleted"`
	Errors    []string `json:"errors"`
}

// Manager はアセットのライフサイクル（永続化と期限切れ回収）を管理します。
// 永続化はオブジェクト書き込み→メタデータ upsert の順で行い、
// どちらの失敗も呼び出し元へ伝播します（黙殺しない）。
type Manager struct {
	storage   ObjectStorage
	store     *Store
	retention RetentionPolicy
	now       func() time.Time
}

// NewManager は新しい Manager を生成します。retention が nil なら既定ティアを使います。
func NewManager(storage ObjectStorage, store *Store, retention RetentionPolicy) *Manager {
	if retention == nil {
		retention = DefaultRetention()
	}
	return &Manager{
		storage:   storage,
		store:     store,
		retention: retention,
		now:       time.Now,
	}
}

// Persist は画像バイト列を保存し、メタデータ行を upsert して返します。
// 保存パスは (project, user, page, type) から決定的に導出されるため、
// 同一ページの再生成は新規アセットを作らず上書きになります。
// expires_at は照会時ではなく書き込み時にプランから確定します。
func (m *Manager) Persist(ctx context.Context, req PersistRequest) (domain.StoredAsset, error) {
	if req.ProjectID == "" || req.UserID == "" {
		return domain.StoredAsset{}, fmt.Errorf("project_id と user_id は必須です")
	}
	if len(req.Data) == 0 {
		return domain.StoredAsset{}, fmt.Errorf("保存対象のデータが空です")
	}
	if req.AssetType == "" {
		req.AssetType = domain.AssetPageImage
	}

	storagePath := ObjectPath(req.ProjectID, req.UserID, req.PageNumber, req.AssetType)
	if err := m.storage.Put(ctx, storagePath, req.Data); err != nil {
		return domain.StoredAsset{}, fmt.Errorf("オブジェクトの保存に失敗しました: %w", err)
	}

	asset := domain.StoredAsset{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		PageNumber:  req.PageNumber,
		AssetType:   req.AssetType,
		StoragePath: storagePath,
		Status:      domain.AssetReady,
		ExpiresAt:   m.expiryFor(req.Plan),
	}

	saved, err := m.store.Upsert(ctx, asset)
	if err != nil {
		// オブジェクトは書けたがメタデータに失敗した状態。孤児を黙って残さないよう
		// エラーを伝播し、呼び出し元に再試行させる。
		return domain.StoredAsset{}, fmt.Errorf("アセットメタデータの保存に失敗しました: %w", err)
	}

	slog.InfoContext(ctx, "アセットを保存しました",
		"asset_id", saved.ID, "path", saved.StoragePath, "expires_at", saved.ExpiresAt)
	return saved, nil
}

// Sweep は期限切れアセットを回収します。オブジェクト削除に成功した行だけを
// expired に遷移させるため、部分失敗しても孤児オブジェクトの追跡は失われず、
// 次回のスイープで再試行されます。同じ期限切れ集合への再実行は no-op です。
func (m *Manager) Sweep(ctx context.Context, batchSize int) (SweepResult, error) {
	var res SweepResult

	expired, err := m.store.Expired(ctx, m.now(), batchSize)
	if err != nil {
		return res, fmt.Errorf("期限切れアセットの検索に失敗しました: %w", err)
	}

	for _, a := range expired {
		res.Processed++

		if err := m.storage.Delete(ctx, a.StoragePath); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: delete: %v", a.ID, err))
			continue
		}
		if err := m.store.MarkExpired(ctx, a.ID); err != nil {
			// オブジェクトは消えたがメタデータ更新に失敗。Delete は冪等なので
			// 次回スイープの再実行で整合する。
			res.Errors = append(res.Errors, fmt.Sprintf("%s: mark expired: %v", a.ID, err))
			continue
		}
		res.Deleted++
	}

	slog.InfoContext(ctx, "クリーンアップスイープが完了しました",
		"processed", res.Processed, "deleted", res.Deleted, "errors", len(res.Errors))
	return res, nil
}

// expiryFor はプランの保持期間から失効時刻を算出します。
func (m *Manager) expiryFor(plan string) *time.Time {
	d, ok := m.retention[plan]
	if !ok {
		d = m.retention["free"]
	}
	if d <= 0 {
		return nil
	}
	t := m.now().UTC().Add(d)
	return &t
}

// ObjectPath は保存パスを決定的に導出します。
func ObjectPath(projectID, userID string, pageNumber *int, assetType domain.AssetType) string {
	ext := ".png"
	switch assetType {
	case domain.AssetPDF:
		ext = ".pdf"
	case domain.AssetZIP:
		ext = ".zip"
	}
	name := string(assetType) + ext
	if pageNumber != nil {
		name = fmt.Sprintf("%s_%03d%s", assetType, *pageNumber, ext)
	}
	return path.Join("projects", projectID, "users", userID, name)
}
