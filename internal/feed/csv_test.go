package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ballast/internal/core"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestCSV_Name(t *testing.T) {
	if got := NewCSV("x.csv").Name(); got != "csv" {
		t.Errorf("Name() = %q, want csv", got)
	}
}

func TestCSV_ReadMixedTimestampFormats(t *testing.T) {
	path := writeTempCSV(t, strings.Join([]string{
		"timestamp,open,high,low,close,volume",
		"1704067200,100,110,90,105,1000",
		"2024-01-02T00:00:00Z,105,115,95,110,1200",
	}, "\n"))

	candles, err := NewCSV(path).Candles(context.Background(), "BTCUSDT", "1d", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	want0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !candles[0].Time.Equal(want0) {
		t.Errorf("candle 0 time = %s, want %s", candles[0].Time, want0)
	}
	if candles[0].Close != 105 || candles[1].Close != 110 {
		t.Errorf("closes = %f, %f; want 105, 110", candles[0].Close, candles[1].Close)
	}
	if candles[1].Volume != 1200 {
		t.Errorf("volume = %f, want 1200", candles[1].Volume)
	}
}

func TestCSV_RangeFilter(t *testing.T) {
	path := writeTempCSV(t, strings.Join([]string{
		"2024-01-01T00:00:00Z,1,1,1,1,1",
		"2024-01-02T00:00:00Z,2,2,2,2,2",
		"2024-01-03T00:00:00Z,3,3,3,3,3",
		"2024-01-04T00:00:00Z,4,4,4,4,4",
	}, "\n"))

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	candles, err := NewCSV(path).Candles(context.Background(), "", "", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 inside [start,end]", len(candles))
	}
	if candles[0].Close != 2 || candles[1].Close != 3 {
		t.Errorf("closes = %f, %f; want 2, 3", candles[0].Close, candles[1].Close)
	}
}

func TestCSV_EmptyRange(t *testing.T) {
	path := writeTempCSV(t, "2024-01-01T00:00:00Z,1,1,1,1,1\n")

	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewCSV(path).Candles(context.Background(), "", "", start, time.Time{})
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestCSV_MissingFile(t *testing.T) {
	_, err := NewCSV(filepath.Join(t.TempDir(), "absent.csv")).Candles(context.Background(), "", "", time.Time{}, time.Time{})
	if !errors.Is(err, core.ErrFeedUnavailable) {
		t.Errorf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestCSV_RejectsUnsortedRows(t *testing.T) {
	path := writeTempCSV(t, strings.Join([]string{
		"2024-01-02T00:00:00Z,2,2,2,2,2",
		"2024-01-01T00:00:00Z,1,1,1,1,1",
	}, "\n"))

	_, err := NewCSV(path).Candles(context.Background(), "", "", time.Time{}, time.Time{})
	if !errors.Is(err, core.ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "ascending") {
		t.Errorf("error should mention ordering: %v", err)
	}
}

func TestCSV_RejectsBadField(t *testing.T) {
	path := writeTempCSV(t, strings.Join([]string{
		"2024-01-01T00:00:00Z,1,1,1,1,1",
		"2024-01-02T00:00:00Z,2,2,2,oops,2",
	}, "\n"))

	_, err := NewCSV(path).Candles(context.Background(), "", "", time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("expected an error for a non-numeric field")
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error should name the row: %v", err)
	}
}

func TestCSV_WriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.csv")
	provider := NewCSV(path)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	written := []core.Candle{
		{Time: base, Open: 50000, High: 51000, Low: 49500, Close: 50800, Volume: 123.45},
		{Time: base.AddDate(0, 0, 1), Open: 50800, High: 52000, Low: 50500, Close: 51900, Volume: 98.7},
	}

	if err := provider.WriteCandles(written); err != nil {
		t.Fatalf("WriteCandles: %v", err)
	}

	read, err := provider.Candles(context.Background(), "", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}

	if len(read) != len(written) {
		t.Fatalf("got %d candles, want %d", len(read), len(written))
	}
	for i := range written {
		if !read[i].Time.Equal(written[i].Time) {
			t.Errorf("candle %d time = %s, want %s", i, read[i].Time, written[i].Time)
		}
		if read[i].Open != written[i].Open || read[i].High != written[i].High ||
			read[i].Low != written[i].Low || read[i].Close != written[i].Close ||
			read[i].Volume != written[i].Volume {
			t.Errorf("candle %d = %+v, want %+v", i, read[i], written[i])
		}
	}
}
