package asset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ObjectStorage はアセット本体の保存先への細い契約です。
// スイープが削除まで担当するため、書き込みと削除の両方を要求します。
type ObjectStorage interface {
	Put(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
}

// FSStorage はローカルファイルシステム上の ObjectStorage 実装です。
type FSStorage struct {
	root string
}

// NewFSStorage はルートディレクトリ配下に保存する FSStorage を生成します。
func NewFSStorage(root string) *FSStorage {
	return &FSStorage{root: root}
}

// Put はデータを書き込みます。同一パスへの書き込みは上書きです。
func (fs *FSStorage) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := filepath.Join(fs.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("オブジェクトの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Delete はオブジェクトを削除します。既に存在しない場合は成功扱いです
// （スイープの再実行を冪等にするため）。
func (fs *FSStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := filepath.Join(fs.root, filepath.FromSlash(path))
	err := os.Remove(full)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	return nil
}
