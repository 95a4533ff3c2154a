package asset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shouni/go-coloring-kit/pkg/domain"
)

func newTestManager(t *testing.T) (*Manager, *Store, string) {
	t.Helper()
	store := newTestStore(t)
	root := t.TempDir()
	manager := NewManager(NewFSStorage(root), store, nil)
	return manager, store, root
}

func TestManager_Persist(t *testing.T) {
	manager, store, root := newTestManager(t)
	ctx := context.Background()

	req := PersistRequest{
		ProjectID:  "proj",
		UserID:     "user",
		PageNumber: intPtr(1),
		AssetType:  domain.AssetPageImage,
		Plan:       "free",
		Data:       []byte("png-bytes"),
	}

	saved, err := manager.Persist(ctx, req)
	if err != nil {
		t.Fatalf("永続化でエラーが発生しました: %v", err)
	}

	t.Run("オブジェクトが決定的なパスに書き込まれること", func(t *testing.T) {
		expected := "projects/proj/users/user/page_image_001.png"
		if saved.StoragePath != expected {
			t.Errorf("期待値 '%s', 実際の値 '%s'", expected, saved.StoragePath)
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(saved.StoragePath)))
		if err != nil {
			t.Fatalf("保存されたオブジェクトの読み込みに失敗しました: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Error("保存された内容が一致しません")
		}
	})

	t.Run("expires_atが書き込み時にプランから確定していること", func(t *testing.T) {
		if saved.ExpiresAt == nil {
			t.Fatal("expires_at が設定されていません")
		}
		expected := time.Now().Add(7 * 24 * time.Hour)
		diff := saved.ExpiresAt.Sub(expected)
		if diff < -time.Minute || diff > time.Minute {
			t.Errorf("free プランの失効時刻が7日後付近ではありません: %v", saved.ExpiresAt)
		}
	})

	t.Run("同一ページの再永続化は行を複製しないこと", func(t *testing.T) {
		again, err := manager.Persist(ctx, req)
		if err != nil {
			t.Fatalf("再永続化でエラーが発生しました: %v", err)
		}
		if again.ID != saved.ID {
			t.Errorf("既存行のIDが維持されていません: %s != %s", again.ID, saved.ID)
		}
		var count int
		if err := store.DB.QueryRow(`SELECT COUNT(*) FROM stored_assets`).Scan(&count); err != nil {
			t.Fatalf("行数の取得に失敗しました: %v", err)
		}
		if count != 1 {
			t.Errorf("行数: 期待値 1, 実際の値 %d", count)
		}
	})

	t.Run("必須項目のバリデーション", func(t *testing.T) {
		if _, err := manager.Persist(ctx, PersistRequest{UserID: "u", Data: []byte("x")}); err == nil {
			t.Error("project_id 無しでエラーが発生しませんでした")
		}
		if _, err := manager.Persist(ctx, PersistRequest{ProjectID: "p", UserID: "u"}); err == nil {
			t.Error("空データでエラーが発生しませんでした")
		}
	})
}

func TestManager_Persist_UnknownPlanFallsBackToFree(t *testing.T) {
	manager, _, _ := newTestManager(t)

	saved, err := manager.Persist(context.Background(), PersistRequest{
		ProjectID: "proj", UserID: "user", PageNumber: intPtr(1),
		AssetType: domain.AssetPageImage, Plan: "enterprise", Data: []byte("x"),
	})
	if err != nil {
		t.Fatalf("永続化でエラーが発生しました: %v", err)
	}
	if saved.ExpiresAt == nil {
		t.Fatal("未知のプランで expires_at が設定されていません")
	}
}

func TestManager_Sweep(t *testing.T) {
	manager, store, root := newTestManager(t)
	ctx := context.Background()

	// 保存してから時計を進め、保持期間を超過させる
	saved, err := manager.Persist(ctx, PersistRequest{
		ProjectID: "proj", UserID: "user", PageNumber: intPtr(1),
		AssetType: domain.AssetPageImage, Plan: "free", Data: []byte("png"),
	})
	if err != nil {
		t.Fatalf("永続化でエラーが発生しました: %v", err)
	}
	manager.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	objectPath := filepath.Join(root, filepath.FromSlash(saved.StoragePath))
	if _, err := os.Stat(objectPath); err != nil {
		t.Fatalf("スイープ前にオブジェクトが存在しません: %v", err)
	}

	res, err := manager.Sweep(ctx, 100)
	if err != nil {
		t.Fatalf("スイープでエラーが発生しました: %v", err)
	}

	t.Run("オブジェクトが削除されメタデータがexpiredになること", func(t *testing.T) {
		if res.Processed != 1 || res.Deleted != 1 {
			t.Errorf("集計が一致しません: %+v", res)
		}
		if len(res.Errors) != 0 {
			t.Errorf("エラーが記録されています: %v", res.Errors)
		}
		if _, err := os.Stat(objectPath); !os.IsNotExist(err) {
			t.Error("オブジェクトが削除されていません")
		}
		got, err := store.Get(ctx, saved.ID)
		if err != nil {
			t.Fatalf("取得でエラーが発生しました: %v", err)
		}
		if got.Status != domain.AssetExpired {
			t.Errorf("状態: 期待値 '%s', 実際の値 '%s'", domain.AssetExpired, got.Status)
		}
		if got.StoragePath != "" {
			t.Errorf("storage_path がクリアされていません: %s", got.StoragePath)
		}
	})

	t.Run("同じ期限切れ集合への再実行はno-opであること", func(t *testing.T) {
		again, err := manager.Sweep(ctx, 100)
		if err != nil {
			t.Fatalf("再スイープでエラーが発生しました: %v", err)
		}
		if again.Processed != 0 || again.Deleted != 0 {
			t.Errorf("再スイープが no-op ではありません: %+v", again)
		}
	})
}

func TestObjectPath(t *testing.T) {
	t.Run("ページ番号ありはゼロ埋めファイル名になること", func(t *testing.T) {
		p := ObjectPath("proj", "user", intPtr(7), domain.AssetPageImage)
		expected := "projects/proj/users/user/page_image_007.png"
		if p != expected {
			t.Errorf("期待値 '%s', 実際の値 '%s'", expected, p)
		}
	})
	t.Run("ページ番号なしは種別のみのファイル名になること", func(t *testing.T) {
		p := ObjectPath("proj", "user", nil, domain.AssetPDF)
		expected := "projects/proj/users/user/pdf.pdf"
		if p != expected {
			t.Errorf("期待値 '%s', 実際の値 '%s'", expected, p)
		}
	})
}
