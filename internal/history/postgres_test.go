package history

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
)

func TestPostgresStoreAppendListRemove(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS walks`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mock.ExpectQuery(`INSERT INTO walks`).
		WithArgs(12.5, 7, "2026-10-18T09:00:00Z", "Medium").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	record, err := store.Append(context.Background(), Record{DurationMinutes: 12.5, Points: 7, Date: "2026-10-18T09:00:00Z", Difficulty: "Medium"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if record.ID != 3 {
		t.Fatalf("expected id from database, got %d", record.ID)
	}

	mock.ExpectQuery(`SELECT id, duration, points, date, difficulty`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "duration", "points", "date", "difficulty"}).
			AddRow(int64(1), 30.0, 4, "2026-10-17T09:00:00Z", "Challenge").
			AddRow(int64(3), 12.5, 7, "2026-10-18T09:00:00Z", "Medium"))

	records, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].Difficulty != "Challenge" {
		t.Fatalf("unexpected records: %+v", records)
	}

	mock.ExpectExec(`DELETE FROM walks`).
		WithArgs(1).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := store.Remove(context.Background(), 1); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreRemoveNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectExec(`DELETE FROM walks`).
		WithArgs(9).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := store.Remove(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Remove(context.Background(), -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for negative index")
	}
}

func TestPostgresStoreErrors(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectQuery(`INSERT INTO walks`).
		WithArgs(1.0, 1, "d", "Easy").
		WillReturnError(errHistory)
	if _, err := store.Append(context.Background(), Record{DurationMinutes: 1, Points: 1, Date: "d", Difficulty: "Easy"}); err == nil {
		t.Fatalf("expected append error")
	}

	mock.ExpectQuery(`SELECT id, duration, points, date, difficulty`).
		WillReturnError(errHistory)
	if _, err := store.ListAll(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}

	mock.ExpectExec(`DELETE FROM walks`).
		WithArgs(0).
		WillReturnError(errHistory)
	if err := store.Remove(context.Background(), 0); !errors.Is(err, errHistory) {
		t.Fatalf("expected remove error")
	}
}

var errHistory = errors.New("history error")
