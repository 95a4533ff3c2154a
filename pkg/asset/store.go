package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

// ErrNotFound は対象のアセット行が存在しないことを示します。
var ErrNotFound = errors.New("asset not found")

const schema = `
CREATE TABLE IF NOT EXISTS stored_assets (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	page_number  INTEGER,
	asset_type   TEXT NOT NULL,
	storage_path TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'ready',
	expires_at   TIMESTAMP,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stored_assets_expiry
	ON stored_assets(status, expires_at);
`

// Store は StoredAsset 行の SQLite ストアです。
type Store struct {
	DB *sql.DB
}

// Open はデータベースファイルを開き、スキーマを適用して Store を返します。
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("データベースディレクトリの作成に失敗しました: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗しました: %w", err)
	}
	return NewStore(db)
}

// NewStore は既存の DB ハンドルからストアを初期化します（テスト用途を含む）。
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("スキーマの適用に失敗しました: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close は下層のデータベースを閉じます。
func (s *Store) Close() error { return s.DB.Close() }

// Upsert は (project_id, page_number, asset_type) をキーに行を挿入または更新します。
// 再生成による上書きで行が重複しないよう、同一キーの既存行は更新されます。
// トランザクション内の SELECT→UPDATE/INSERT なので同一ページへの並行書き込みは直列化されます。
func (s *Store) Upsert(ctx context.Context, a domain.StoredAsset) (domain.StoredAsset, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoredAsset{}, err
	}
	defer tx.Rollback()

	var existingID string
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM stored_assets WHERE project_id=? AND IFNULL(page_number,-1)=IFNULL(?,-1) AND asset_type=?`,
		a.ProjectID, nullableInt(a.PageNumber), a.AssetType)
	err = row.Scan(&existingID)

	now := time.Now().UTC()
	switch {
	case err == sql.ErrNoRows:
		a.CreatedAt = now
		a.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stored_assets(id,project_id,user_id,page_number,asset_type,storage_path,status,expires_at,created_at,updated_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?)`,
			a.ID, a.ProjectID, a.UserID, nullableInt(a.PageNumber), a.AssetType,
			a.StoragePath, a.Status, nullableTime(a.ExpiresAt), a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return domain.StoredAsset{}, err
		}
	case err != nil:
		return domain.StoredAsset{}, err
	default:
		a.ID = existingID
		a.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE stored_assets SET user_id=?, storage_path=?, status=?, expires_at=?, updated_at=? WHERE id=?`,
			a.UserID, a.StoragePath, a.Status, nullableTime(a.ExpiresAt), a.UpdatedAt, a.ID)
		if err != nil {
			return domain.StoredAsset{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StoredAsset{}, err
	}
	return a, nil
}

// Get は ID で1行取得します。
func (s *Store) Get(ctx context.Context, id string) (domain.StoredAsset, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id,project_id,user_id,page_number,asset_type,storage_path,status,expires_at,created_at,updated_at
		 FROM stored_assets WHERE id=?`, id)
	return scanAsset(row)
}

// Expired は status=ready かつ expires_at が now より過去の行を古い順に返します。
func (s *Store) Expired(ctx context.Context, now time.Time, limit int) ([]domain.StoredAsset, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id,project_id,user_id,page_number,asset_type,storage_path,status,expires_at,created_at,updated_at
		 FROM stored_assets
		 WHERE status=? AND expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY expires_at ASC LIMIT ?`,
		domain.AssetReady, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.StoredAsset
	for rows.Next() {
		a, err := scanAssetRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkExpired は行を expired に遷移させ、storage_path をクリアします。
// ready→expired の遷移はこの関数（＝スイープ）だけが行います。
func (s *Store) MarkExpired(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE stored_assets SET status=?, storage_path='', updated_at=? WHERE id=?`,
		domain.AssetExpired, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row *sql.Row) (domain.StoredAsset, error) {
	a, err := scanAssetRows(row)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func scanAssetRows(row rowScanner) (domain.StoredAsset, error) {
	var (
		a    domain.StoredAsset
		page sql.NullInt64
		exp  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.ProjectID, &a.UserID, &page, &a.AssetType,
		&a.StoragePath, &a.Status, &exp, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if page.Valid {
		n := int(page.Int64)
		a.PageNumber = &n
	}
	if exp.Valid {
		t := exp.Time
		a.ExpiresAt = &t
	}
	return a, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
