package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "walks.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewSQLiteStore(context.Background(), sqlDB)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreAppendListRemove(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, difficulty := range []string{"Easy", "Challenge", "Hard"} {
		record, err := store.Append(ctx, Record{DurationMinutes: float64(i) + 0.5, Points: i * 2, Date: "2026-10-18T09:00:00Z", Difficulty: difficulty})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if record.ID == 0 {
			t.Fatalf("expected id")
		}
	}

	records, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 || records[1].Difficulty != "Challenge" || records[1].DurationMinutes != 1.5 {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := store.Remove(ctx, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	records, _ = store.ListAll(ctx)
	if len(records) != 2 || records[0].Difficulty != "Easy" || records[1].Difficulty != "Hard" {
		t.Fatalf("unexpected records after remove: %+v", records)
	}

	if err := store.Remove(ctx, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Remove(ctx, -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for negative index")
	}
}

func TestSQLiteStoreEmptyList(t *testing.T) {
	store := newTestSQLiteStore(t)
	records, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil list")
	}
}

func TestSQLiteStoreClosed(t *testing.T) {
	store := newTestSQLiteStore(t)
	_ = store.Close()
	if _, err := store.Append(context.Background(), Record{Date: "d", Difficulty: "Easy"}); err == nil {
		t.Fatalf("expected error on closed store")
	}
	var nilStore *SQLiteStore
	if err := nilStore.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
