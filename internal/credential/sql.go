package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kojeffi/tbookers/internal/database"
)

// SQLStore はcredentialsテーブルの1行にクレデンシャルを保存するStore。
// SQLiteとPostgreSQLの両方で動作する。
type SQLStore struct {
	db     *sql.DB
	driver string
	sealer Sealer
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore はSQLStoreを生成する。dbはマイグレーション適用済みであること。
func NewSQLStore(db *sql.DB, driver string, sealer Sealer) *SQLStore {
	if sealer == nil {
		sealer = PlainSealer{}
	}
	return &SQLStore{db: db, driver: driver, sealer: sealer}
}

func (s *SQLStore) ph(n int) string {
	return database.Placeholder(s.driver, n)
}

func (s *SQLStore) Load(ctx context.Context) (string, error) {
	var value string
	query := fmt.Sprintf(`SELECT value FROM credentials WHERE key = %s`, s.ph(1))
	err := s.db.QueryRowContext(ctx, query, Key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return s.sealer.Open(value)
}

func (s *SQLStore) Save(ctx context.Context, credential string) error {
	sealed, err := s.sealer.Seal(credential)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO credentials (key, value, updated_at)
		VALUES (%s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.ph(1), s.ph(2), s.ph(3))
	if _, err := s.db.ExecContext(ctx, query, Key, sealed, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM credentials WHERE key = %s`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, query, Key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *SQLStore) Close() error {
	return s.db.Close()
}
