package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-coloring-kit/internal/builder"
	"github.com/shouni/go-coloring-kit/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Options.DBPath = filepath.Join(dir, "test.db")
	cfg.Options.StorageDir = filepath.Join(dir, "assets")
	appCtx := builder.AppContext{Config: cfg, Options: cfg.Options}
	return New(&appCtx)
}

func TestHandlePersistAsset(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"projectId": "proj",
		"userId": "user",
		"pageNumber": 1,
		"assetType": "page_image",
		"plan": "free",
		"imageBytes": "cG5nLWJ5dGVz"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス: 期待値 200, 実際の値 %d (body=%s)", rec.Code, rec.Body.String())
	}

	var resp persistAssetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.AssetID == "" {
		t.Error("assetId が空です")
	}
	if resp.StoragePath != "projects/proj/users/user/page_image_001.png" {
		t.Errorf("storagePath が一致しません: %s", resp.StoragePath)
	}
	if resp.ExpiresAt == nil {
		t.Error("expiresAt が設定されていません")
	}
}

func TestHandlePersistAsset_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	// project_id 欠落は呼び出し元に伝播してエラーレスポンスになること
	body := `{"userId": "user", "imageBytes": "cG5n"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatal("必須項目欠落なのに 200 が返りました")
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.OK {
		t.Error("エラーレスポンスの ok が true です")
	}
	if resp.Error == "" {
		t.Error("エラーメッセージが空です")
	}
}

func TestHandleSweep_EmptySet(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assets/sweep", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス: 期待値 200, 実際の値 %d (body=%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Processed int `json:"processed"`
		Deleted   int `json:"deleted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.Processed != 0 || resp.Deleted != 0 {
		t.Errorf("空集合のスイープが no-op ではありません: %+v", resp)
	}
}

func TestHandleBatch_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	t.Run("ページ0件は400になること", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(`{"pages":[]}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("ステータス: 期待値 400, 実際の値 %d", rec.Code)
		}
	})

	t.Run("不正なサイズは400になること", func(t *testing.T) {
		body := `{"pages":[{"page":1,"prompt":"a fox"}],"size":"a4"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batch", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("ステータス: 期待値 400, 実際の値 %d", rec.Code)
		}
	})
}

func TestHandleRegenerate_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pages/regenerate", strings.NewReader(`{"prompt":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータス: 期待値 400, 実際の値 %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.ErrorCode != "invalid_request" {
		t.Errorf("errorCode: 期待値 'invalid_request', 実際の値 '%s'", resp.ErrorCode)
	}
}
