// Package database はクレデンシャル保存用データベースの接続とマイグレーション管理を提供する。
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ドライバ名
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open はデータベース接続を開く。
// driverにはDriverPostgresまたはDriverSQLiteを指定する。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは書き込みが直列化されるため接続を1本に絞る
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Placeholder はドライバに応じたn番目（1始まり）のバインド変数を返す。
func Placeholder(driver string, n int) string {
	if driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
