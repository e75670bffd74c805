// Package testutil provides test helpers shared across khata packages: an
// isolated in-memory database seeded with categories and transaction
// fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/storage"
)

// TestDB is a migrated in-memory database with seeded categories.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	categories map[CategoryName]model.Category
}

// SetupTestDB creates a migrated in-memory database seeded with the given
// categories. With no names the standard set is used.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedTransactions(testutil.NewTransaction("t1", "LESCO bill").Build())
func SetupTestDB(t *testing.T, names ...CategoryName) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if len(names) == 0 {
		names = StandardCategories
	}

	db := &TestDB{
		Storage:    store,
		t:          t,
		categories: make(map[CategoryName]model.Category, len(names)),
	}
	for _, name := range names {
		cat, err := store.CreateCategory(ctx, name.String(), "")
		if err != nil {
			t.Fatalf("failed to seed category %q: %v", name, err)
		}
		db.categories[name] = *cat
	}

	return db
}

// CategoryID returns the id of a seeded category or fails the test.
func (db *TestDB) CategoryID(name CategoryName) int {
	db.t.Helper()
	cat, ok := db.categories[name]
	if !ok {
		db.t.Fatalf("category %q was not seeded", name)
	}
	return cat.ID
}

// SeedTransactions stores transactions or fails the test.
func (db *TestDB) SeedTransactions(txns ...model.Transaction) {
	db.t.Helper()
	if len(txns) == 0 {
		return
	}
	if _, err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}
