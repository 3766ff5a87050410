package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore はクレデンシャルを単一ファイルに保存するStore。
// 書き込みは一時ファイル経由のリネームで行い、途中状態のファイルを残さない。
type FileStore struct {
	path   string
	sealer Sealer
}

var _ Store = (*FileStore)(nil)

// NewFileStore はFileStoreを生成する。sealerがnilの場合は平文で保存する。
func NewFileStore(path string, sealer Sealer) *FileStore {
	if sealer == nil {
		sealer = PlainSealer{}
	}
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", nil
	}
	return s.sealer.Open(string(data))
}

func (s *FileStore) Save(ctx context.Context, credential string) error {
	sealed, err := s.sealer.Seal(credential)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting credential file mode: %w", err)
	}
	if _, err := tmp.WriteString(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
