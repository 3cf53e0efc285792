package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem はBMPファイルの置き場所を抽象化するインターフェース
type FileSystem interface {
	// Open はファイルを開く（大文字小文字を無視）
	Open(name string) (fs.File, error)
	// BasePath はベースパスを返す
	BasePath() string
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
// basePathが空の場合はカレントディレクトリ基準
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	path := r.resolvePath(name)
	actualPath, err := r.findFileCaseInsensitive(path)
	if err != nil {
		return nil, err
	}
	return os.Open(actualPath)
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	cleanName := strings.TrimPrefix(strings.TrimPrefix(name, "/"), "\\")
	if r.basePath != "" {
		return filepath.Join(r.basePath, cleanName)
	}
	return cleanName
}

func (r *RealFS) findFileCaseInsensitive(path string) (string, error) {
	// まず直接アクセスを試みる
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(path), filepath.Base(path))
}
