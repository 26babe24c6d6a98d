package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

// timeLayouts are tried in order when parsing bar timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVLoader reads OHLCV bars from a CSV file. It validates column presence,
// coerces numeric fields, drops rows without a usable close, de-duplicates
// timestamps (first occurrence wins), and sorts ascending.
type CSVLoader struct {
	path   string
	symbol string
}

// NewCSVLoader creates a loader for the CSV file at path. symbol tags the
// resulting series.
func NewCSVLoader(path, symbol string) *CSVLoader {
	return &CSVLoader{path: path, symbol: symbol}
}

// Load reads and validates the file.
func (l *CSVLoader) Load(_ context.Context) (domain.Series, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("data: open %s: %w", l.path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return domain.Series{}, fmt.Errorf("data: read %s: %w", l.path, err)
	}
	if len(records) < 2 {
		return domain.Series{}, fmt.Errorf("data: %s: %w", l.path, domain.ErrNoData)
	}

	cols, err := mapColumns(records[0])
	if err != nil {
		return domain.Series{}, fmt.Errorf("data: %s: %w", l.path, err)
	}

	seen := make(map[int64]bool)
	bars := make([]domain.Bar, 0, len(records)-1)
	for _, rec := range records[1:] {
		bar, err := parseRow(rec, cols)
		if err != nil {
			// Rows without a parseable timestamp or close are dropped.
			continue
		}
		key := bar.Timestamp.UnixNano()
		if seen[key] {
			continue
		}
		seen[key] = true
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return domain.Series{}, fmt.Errorf("data: %s: no usable rows: %w", l.path, domain.ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return domain.Series{Symbol: l.symbol, Bars: bars}, nil
}

// columns maps OHLCV fields to header indexes.
type columns struct {
	time, open, high, low, close, volume int
}

// mapColumns resolves header names case-insensitively, accepting the common
// vendor aliases for each field.
func mapColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	find := func(candidates ...string) int {
		for _, c := range candidates {
			if i, ok := idx[c]; ok {
				return i
			}
		}
		return -1
	}

	cols := columns{
		time:   find("datetime", "timestamp", "time", "date", "t"),
		open:   find("open", "o"),
		high:   find("high", "h"),
		low:    find("low", "l"),
		close:  find("close", "c"),
		volume: find("volume", "v"),
	}

	var missing []string
	for name, i := range map[string]int{
		"time": cols.time, "open": cols.open, "high": cols.high,
		"low": cols.low, "close": cols.close, "volume": cols.volume,
	} {
		if i < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return columns{}, fmt.Errorf("missing columns %v in header %v", missing, header)
	}
	return cols, nil
}

func parseRow(rec []string, cols columns) (domain.Bar, error) {
	need := cols.time
	for _, i := range []int{cols.open, cols.high, cols.low, cols.close, cols.volume} {
		if i > need {
			need = i
		}
	}
	if len(rec) <= need {
		return domain.Bar{}, fmt.Errorf("short row")
	}

	ts, err := parseTime(rec[cols.time])
	if err != nil {
		return domain.Bar{}, err
	}

	closePx, err := strconv.ParseFloat(strings.TrimSpace(rec[cols.close]), 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("close %q: %w", rec[cols.close], err)
	}

	return domain.Bar{
		Timestamp: ts,
		Open:      coerce(rec[cols.open]),
		High:      coerce(rec[cols.high]),
		Low:       coerce(rec[cols.low]),
		Close:     closePx,
		Volume:    coerce(rec[cols.volume]),
	}, nil
}

// coerce parses a numeric field, yielding NaN for unparseable values so a
// bad open/high/low/volume never drops the whole row.
func coerce(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Epoch seconds as a last resort.
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
