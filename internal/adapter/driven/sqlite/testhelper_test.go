package sqlite

import (
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB opens a migrated in-memory database private to the test. The
// reader and writer pools meet through cache=shared under a name derived
// from t.Name().
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(t.Name()), basePragmas)

	db, err := newDB(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
