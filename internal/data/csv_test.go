package data

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadBasic(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,close,volume
2024-01-02T09:30:00Z,100,101,99,100.5,1000
2024-01-02T09:31:00Z,100.5,102,100,101.5,1100
`)

	series, err := NewCSVLoader(path, "SPY").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if series.Symbol != "SPY" {
		t.Errorf("symbol = %q, want SPY", series.Symbol)
	}
	if series.Len() != 2 {
		t.Fatalf("bars = %d, want 2", series.Len())
	}
	first := series.Bars[0]
	if first.Close != 100.5 || first.Volume != 1000 {
		t.Errorf("unexpected first bar %+v", first)
	}
}

func TestLoadHeaderAliases(t *testing.T) {
	path := writeCSV(t, `Date,O,H,L,C,V
2024-01-02,1,2,0.5,1.5,10
`)

	series, err := NewCSVLoader(path, "X").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if series.Bars[0].Close != 1.5 {
		t.Errorf("close = %v, want 1.5", series.Bars[0].Close)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,volume
2024-01-02T09:30:00Z,100,101,99,1000
`)

	if _, err := NewCSVLoader(path, "X").Load(context.Background()); err == nil {
		t.Fatal("expected error for missing close column")
	}
}

func TestLoadDropsUnusableRows(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,close,volume
not-a-time,100,101,99,100.5,1000
2024-01-02T09:30:00Z,100,101,99,not-a-price,1000
2024-01-02T09:31:00Z,100,101,99,100.5,1000
`)

	series, err := NewCSVLoader(path, "X").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Bad timestamp and bad close both drop the row; the good row survives.
	if series.Len() != 1 {
		t.Fatalf("bars = %d, want 1", series.Len())
	}
}

func TestLoadCoercesNonCloseFieldsToNaN(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,close,volume
2024-01-02T09:30:00Z,,x,99,100.5,
`)

	series, err := NewCSVLoader(path, "X").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	bar := series.Bars[0]
	if !math.IsNaN(bar.Open) || !math.IsNaN(bar.High) || !math.IsNaN(bar.Volume) {
		t.Errorf("expected NaN open/high/volume, got %+v", bar)
	}
	if bar.Low != 99 || bar.Close != 100.5 {
		t.Errorf("parseable fields mangled: %+v", bar)
	}
}

func TestLoadDeduplicatesFirstWins(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,close,volume
2024-01-02T09:30:00Z,100,101,99,100.5,1000
2024-01-02T09:30:00Z,200,201,199,200.5,2000
`)

	series, err := NewCSVLoader(path, "X").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if series.Len() != 1 {
		t.Fatalf("bars = %d, want 1", series.Len())
	}
	if series.Bars[0].Close != 100.5 {
		t.Errorf("close = %v, want first occurrence 100.5", series.Bars[0].Close)
	}
}

func TestLoadSortsAscending(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,close,volume
2024-01-02T09:32:00Z,1,1,1,3,1
2024-01-02T09:30:00Z,1,1,1,1,1
2024-01-02T09:31:00Z,1,1,1,2,1
`)

	series, err := NewCSVLoader(path, "X").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := 1; i < series.Len(); i++ {
		if !series.Bars[i-1].Timestamp.Before(series.Bars[i].Timestamp) {
			t.Fatalf("bars out of order at %d", i)
		}
	}
	if series.Bars[0].Close != 1 || series.Bars[2].Close != 3 {
		t.Errorf("unexpected order: %v %v", series.Bars[0].Close, series.Bars[2].Close)
	}
}

func TestLoadEpochSeconds(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704187800,100,101,99,100.5,1000
`)

	series, err := NewCSVLoader(path, "X").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := time.Unix(1704187800, 0).UTC()
	if !series.Bars[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", series.Bars[0].Timestamp, want)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeCSV(t, "datetime,open,high,low,close,volume\n")

	_, err := NewCSVLoader(path, "X").Load(context.Background())
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestLoadAllRowsUnusable(t *testing.T) {
	path := writeCSV(t, `datetime,open,high,low,close,volume
bad,1,1,1,bad,1
`)

	_, err := NewCSVLoader(path, "X").Load(context.Background())
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewCSVLoader(filepath.Join(t.TempDir(), "absent.csv"), "X").Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
