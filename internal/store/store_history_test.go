package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestRecordYearLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	summary := json.RawMessage(`{"year":"1947"}`)

	mock.ExpectExec(`INSERT INTO year_lookups \(year, timeline_size, used_fallback, summary\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(1947, 3, false, []byte(summary)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := HistoryRecord{Year: 1947, TimelineSize: 3, Summary: summary}
	if err := st.RecordYearLookup(context.Background(), rec); err != nil {
		t.Fatalf("RecordYearLookup returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordYearLookupRejectsInvalidYear(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	err = st.RecordYearLookup(context.Background(), HistoryRecord{Year: 0})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestRecentYearLookups(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT id, year, timeline_size, used_fallback, summary, created_at FROM year_lookups ORDER BY created_at DESC, id DESC LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "timeline_size", "used_fallback", "summary", "created_at"}).
			AddRow(int64(2), 1857, 1, true, []byte(`{"year":"1857"}`), now).
			AddRow(int64(1), 1947, 6, false, []byte(`{"year":"1947"}`), now.Add(-time.Minute)))

	recs, err := st.RecentYearLookups(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentYearLookups returned error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Year != 1857 || !recs[0].UsedFallback || string(recs[0].Summary) != `{"year":"1857"}` {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
