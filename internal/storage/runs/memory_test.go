package runs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ballast/internal/core"
)

func testRecord(id string, createdAt time.Time) core.RunRecord {
	return core.RunRecord{
		ID:             id,
		Symbol:         "BTCUSDT",
		Start:          createdAt.AddDate(0, -6, 0),
		End:            createdAt,
		InitialCapital: 10000,
		FinalValue:     11200,
		TotalReturn:    0.12,
		Sharpe:         1.4,
		MaxDrawdown:    -0.08,
		WinRate:        0.6,
		Trades:         14,
		ConfigDigest:   "abc123",
		CreatedAt:      createdAt,
	}
}

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := testRecord("run-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := store.SaveRun(ctx, record); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Symbol != "BTCUSDT" || got.Sharpe != 1.4 || got.Trades != 14 {
		t.Errorf("record fields lost: %+v", got)
	}
}

func TestMemoryStore_GetRun_NotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetRun(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestMemoryStore_SaveRun_RequiresID(t *testing.T) {
	store := NewMemoryStore()

	if err := store.SaveRun(context.Background(), core.RunRecord{}); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestMemoryStore_ListRuns_NewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("run-%d", i), base.AddDate(0, 0, i))
		if err := store.SaveRun(ctx, record); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	records, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"run-2", "run-1", "run-0"} {
		if records[i].ID != want {
			t.Errorf("records[%d].ID = %q, want %q", i, records[i].ID, want)
		}
	}
}

func TestMemoryStore_ListRuns_Limit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.SaveRun(ctx, testRecord(fmt.Sprintf("run-%d", i), base.AddDate(0, 0, i)))
	}

	records, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "run-4" || records[1].ID != "run-3" {
		t.Errorf("unexpected order: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestMemoryStore_SaveRun_ReplacesExistingID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store.SaveRun(ctx, testRecord("run-1", ts))

	updated := testRecord("run-1", ts)
	updated.FinalValue = 9999
	store.SaveRun(ctx, updated)

	records, _ := store.ListRuns(ctx, 0)
	if len(records) != 1 {
		t.Fatalf("expected 1 record after replace, got %d", len(records))
	}
	if records[0].FinalValue != 9999 {
		t.Errorf("expected replaced value, got %v", records[0].FinalValue)
	}
}

func TestMemoryStore_SaveRun_AssignsCreatedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := testRecord("run-1", time.Time{})
	record.CreatedAt = time.Time{}
	store.SaveRun(ctx, record)

	got, _ := store.GetRun(ctx, "run-1")
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be assigned on save")
	}
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
