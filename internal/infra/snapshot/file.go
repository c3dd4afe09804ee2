package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore хранит снимок в одном файле. Запись атомарна: сначала во
// временный файл рядом, затем rename, чтобы убитый процесс не оставил
// половину снапшота.
type FileStore struct {
	path string
}

// NewFileStore создаёт файловое хранилище и каталог под него.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("каталог снапшота: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Save атомарно записывает снимок.
func (f *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("запись снапшота: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("замена снапшота: %w", err)
	}
	return nil
}

// Load читает снимок; (nil, nil), если файла ещё нет.
func (f *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("чтение снапшота: %w", err)
	}
	return data, nil
}
