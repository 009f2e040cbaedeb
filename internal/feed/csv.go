package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ballast/internal/core"
)

// CSV serves candles from a local file with
// timestamp,open,high,low,close,volume rows. Timestamps may be RFC3339
// or unix seconds; a single header row is tolerated. The same file
// format is written by WriteCandles, so a fetched history can be
// replayed offline.
type CSV struct {
	path string
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Name() string { return "csv" }

// Candles reads the file and returns the rows inside [start, end].
// A zero start or end leaves that side unbounded. The symbol and
// interval arguments are ignored; the file is the symbol.
func (c *CSV) Candles(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("opening %s: %w", c.path, err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 6

	records, err := reader.ReadAll()
	if err != nil {
		return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("reading %s: %w", c.path, err))
	}

	candles := make([]core.Candle, 0, len(records))
	for i, record := range records {
		candle, err := parseRow(record)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("%s row %d: %w", c.path, i+1, err))
		}
		if n := len(candles); n > 0 && !candle.Time.After(candles[n-1].Time) {
			return nil, core.WrapError(core.ErrFeedUnavailable,
				fmt.Errorf("%s row %d: timestamps not strictly ascending", c.path, i+1))
		}
		if !start.IsZero() && candle.Time.Before(start) {
			continue
		}
		if !end.IsZero() && candle.Time.After(end) {
			continue
		}
		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no candles in range", c.path))
	}
	return candles, nil
}

// WriteCandles replaces the file with the given candles, creating
// parent directories as needed.
func (c *CSV) WriteCandles(candles []core.Candle) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", c.path, err)
	}

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, candle := range candles {
		row := []string{
			candle.Time.UTC().Format(time.RFC3339),
			formatFloat(candle.Open),
			formatFloat(candle.High),
			formatFloat(candle.Low),
			formatFloat(candle.Close),
			formatFloat(candle.Volume),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing candle at %s: %w", candle.Time, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", c.path, err)
	}
	return nil
}

func parseRow(record []string) (core.Candle, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return core.Candle{}, err
	}

	values := make([]float64, 5)
	for i, field := range record[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("field %d: %w", i+2, err)
		}
		values[i] = v
	}

	return core.Candle{
		Time:   ts,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

func parseTimestamp(field string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, field); err == nil {
		return ts.UTC(), nil
	}
	if secs, err := strconv.ParseInt(field, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q is neither RFC3339 nor unix seconds", field)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
