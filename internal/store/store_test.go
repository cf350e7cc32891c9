package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// openTestDB opens a fresh on-disk sqlite database per test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return db
}

func newOwner() string {
	return uuid.NewString()
}
