package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Files は添付ファイルをローカルディスクに保存するストアです。
// 保存名は呼び出し側が生成した衝突しないファイル名（UUIDベース）を前提とします。
type Files struct {
	dir string
}

// NewFiles はファイルストアを作成します。ディレクトリがなければ作成します。
func NewFiles(dir string) (*Files, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Files{dir: dir}, nil
}

// Save は r の内容を filename として保存し、書き込んだバイト数を返します。
func (f *Files) Save(filename string, r io.Reader) (int64, error) {
	path, err := f.resolve(filename)
	if err != nil {
		return 0, err
	}
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(dst, r)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return written, nil
}

// Open は保存済みファイルを読み取り用に開きます。
func (f *Files) Open(filename string) (*os.File, int64, error) {
	path, err := f.resolve(filename)
	if err != nil {
		return nil, 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

// Delete は保存済みファイルを削除します。存在しない場合もエラーにしません。
func (f *Files) Delete(filename string) error {
	path, err := f.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List は保存されている全ファイル名を返します（孤児掃除用）。
func (f *Files) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// resolve はファイル名を検証してフルパスに解決します。
// パス区切りを含む名前はディレクトリ外への書き込みを防ぐため拒否します。
func (f *Files) resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return filepath.Join(f.dir, filename), nil
}
