package credential

import (
	"fmt"

	"github.com/kojeffi/tbookers/internal/config"
	"github.com/kojeffi/tbookers/internal/database"
)

// NewStoreFromConfig は設定のストア種別に応じたStoreを生成する。
// memory以外はage鍵で暗号化して保存する。SQL系はマイグレーションを適用してから返す。
func NewStoreFromConfig(cfg *config.Config) (Store, error) {
	if cfg.CredentialStore == "memory" {
		return NewMemoryStore(), nil
	}

	sealer, err := NewAgeSealer(cfg.IdentityFilePath())
	if err != nil {
		return nil, fmt.Errorf("preparing credential encryption: %w", err)
	}

	switch cfg.CredentialStore {
	case "file":
		return NewFileStore(cfg.CredentialFilePath(), sealer), nil
	case "sqlite":
		return openSQLStore(database.DriverSQLite, cfg.SQLitePath(), sealer)
	case "postgres":
		return openSQLStore(database.DriverPostgres, cfg.CredentialDatabaseURL, sealer)
	default:
		return nil, fmt.Errorf("unknown credential store: %s", cfg.CredentialStore)
	}
}

func openSQLStore(driver, dsn string, sealer Sealer) (*SQLStore, error) {
	db, err := database.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect credential database: %w", err)
	}
	if err := database.RunMigrations(db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLStore(db, driver, sealer), nil
}
