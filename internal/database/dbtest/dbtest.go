// Package dbtest はテスト用にマイグレーション済みのSQLiteデータベースを提供する。
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hitoshi/habitman/internal/database"
)

// Open は一時ディレクトリにSQLiteデータベースを作成し、全マイグレーションを適用して返す。
// テスト終了時に自動でクローズされる。
func Open(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, dialect, err := database.Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.MigrateDB(db, dialect); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}
