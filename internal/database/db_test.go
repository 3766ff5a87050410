package database

import (
	"testing"
)

// TestOpen_ReturnsDBForAnyURL はsql.Openは接続を試行しないため、
// 不正なURLでもDBオブジェクトが返ることを検証する。
func TestOpen_ReturnsDBForAnyURL(t *testing.T) {
	db, err := Open(DriverPostgres, "postgres://invalid")
	if err != nil {
		t.Fatalf("Open returned unexpected error: %v", err)
	}
	if db == nil {
		t.Fatal("expected non-nil db")
	}
	defer db.Close()
}

// TestOpen_UnsupportedDriver は未対応ドライバでエラーになることを検証する。
func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "root@/db"); err == nil {
		t.Fatal("未対応ドライバでエラーが返されるべき")
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Placeholder(DriverPostgres, 2); got != "$2" {
		t.Errorf("postgres placeholder = %q, want $2", got)
	}
	if got := Placeholder(DriverSQLite, 2); got != "?" {
		t.Errorf("sqlite placeholder = %q, want ?", got)
	}
}
